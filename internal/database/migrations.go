package database

type migration struct {
	name string
	sql  string
}

// Tables lists the application tables in dependency order.
var Tables = []string{
	"users",
	"manuscripts",
	"manuscript_timeline",
	"reviews",
	"payments",
	"payment_infos",
	"volumes",
	"issues",
	"issue_articles",
	"notifications",
}

var migrations = []migration{
	{"extensions", `CREATE EXTENSION IF NOT EXISTS pgcrypto;`},
	{"users", `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		roles JSONB NOT NULL DEFAULT '["author"]',
		current_active_role VARCHAR(50) NOT NULL DEFAULT 'author',
		is_founder BOOLEAN NOT NULL DEFAULT FALSE,
		designation VARCHAR(255) NOT NULL DEFAULT '',
		designation_role VARCHAR(255) NOT NULL DEFAULT '',
		affiliation VARCHAR(255) NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CHECK (jsonb_typeof(roles) = 'array')
	);`},
	{"manuscripts", `
	CREATE TABLE IF NOT EXISTS manuscripts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		submission_number VARCHAR(64) UNIQUE NOT NULL,
		title VARCHAR(500) NOT NULL,
		abstract TEXT NOT NULL,
		keywords JSONB NOT NULL DEFAULT '[]',
		authors JSONB NOT NULL DEFAULT '[]',
		submitted_by UUID NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		manuscript_url TEXT NOT NULL,
		cover_letter TEXT NOT NULL DEFAULT '',
		revision_number INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(50) NOT NULL DEFAULT 'submitted',
		copy_editing_stage VARCHAR(50) NOT NULL DEFAULT '',
		draft_status VARCHAR(50) NOT NULL DEFAULT '',
		copy_editor_assignment JSONB,
		author_copy_edit_review JSONB,
		copy_edit_review JSONB,
		requires_payment BOOLEAN NOT NULL DEFAULT FALSE,
		payment_status VARCHAR(50) NOT NULL DEFAULT '',
		apc_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0,
		downloads INTEGER NOT NULL DEFAULT 0,
		citations INTEGER NOT NULL DEFAULT 0,
		volume_id UUID,
		issue_id UUID,
		pages VARCHAR(50) NOT NULL DEFAULT '',
		doi VARCHAR(255) NOT NULL DEFAULT '',
		published_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`},
	{"manuscript_timeline", `
	CREATE TABLE IF NOT EXISTS manuscript_timeline (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		manuscript_id UUID NOT NULL REFERENCES manuscripts(id) ON DELETE CASCADE,
		event VARCHAR(100) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		performed_by UUID NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`},
	{"reviews", `
	CREATE TABLE IF NOT EXISTS reviews (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		manuscript_id UUID NOT NULL REFERENCES manuscripts(id) ON DELETE CASCADE,
		reviewer_id UUID NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		assigned_by UUID NOT NULL,
		round INTEGER NOT NULL DEFAULT 0,
		status VARCHAR(50) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'accepted', 'declined', 'completed')),
		recommendation VARCHAR(50) NOT NULL DEFAULT '',
		ratings JSONB,
		comments_to_author TEXT NOT NULL DEFAULT '',
		confidential_comments TEXT NOT NULL DEFAULT '',
		due_date TIMESTAMP WITH TIME ZONE,
		submitted_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(manuscript_id, reviewer_id, round)
	);`},
	{"payments", `
	CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		manuscript_id UUID UNIQUE NOT NULL REFERENCES manuscripts(id) ON DELETE CASCADE,
		author_id UUID NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
		amount NUMERIC(12,2) NOT NULL,
		currency VARCHAR(8) NOT NULL,
		reference VARCHAR(64) UNIQUE NOT NULL,
		status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'submitted', 'completed', 'rejected', 'waived')),
		verified_by UUID,
		verified_at TIMESTAMP WITH TIME ZONE,
		rejection_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`},
	{"payment_infos", `
	CREATE TABLE IF NOT EXISTS payment_infos (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		payment_id UUID NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
		manuscript_id UUID NOT NULL REFERENCES manuscripts(id) ON DELETE CASCADE,
		bank_name VARCHAR(255) NOT NULL,
		account_holder VARCHAR(255) NOT NULL,
		transaction_id VARCHAR(255) NOT NULL,
		receipt_url TEXT NOT NULL DEFAULT '',
		amount_paid NUMERIC(12,2) NOT NULL,
		paid_at TIMESTAMP WITH TIME ZONE NOT NULL,
		status VARCHAR(50) NOT NULL CHECK (status IN ('pending-verification', 'verified', 'rejected')),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`},
	{"volumes", `
	CREATE TABLE IF NOT EXISTS volumes (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		number INTEGER UNIQUE NOT NULL,
		year INTEGER NOT NULL,
		title VARCHAR(500) NOT NULL DEFAULT '',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`},
	{"issues", `
	CREATE TABLE IF NOT EXISTS issues (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		volume_id UUID NOT NULL REFERENCES volumes(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		title VARCHAR(500) NOT NULL DEFAULT '',
		published_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(volume_id, number)
	);`},
	{"issue_articles", `
	CREATE TABLE IF NOT EXISTS issue_articles (
		issue_id UUID NOT NULL REFERENCES issues(id) ON DELETE CASCADE,
		manuscript_id UUID NOT NULL REFERENCES manuscripts(id) ON DELETE CASCADE,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (issue_id, manuscript_id)
	);`},
	{"notifications", `
	CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		manuscript_id UUID REFERENCES manuscripts(id) ON DELETE SET NULL,
		type VARCHAR(100) NOT NULL,
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);`},
	{"indexes", `
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_manuscripts_status ON manuscripts(status);
	CREATE INDEX IF NOT EXISTS idx_manuscripts_submitted_by ON manuscripts(submitted_by);
	CREATE INDEX IF NOT EXISTS idx_manuscripts_copy_editor ON manuscripts ((copy_editor_assignment->>'copy_editor_id'));
	CREATE INDEX IF NOT EXISTS idx_timeline_manuscript ON manuscript_timeline(manuscript_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_reviews_manuscript ON reviews(manuscript_id);
	CREATE INDEX IF NOT EXISTS idx_reviews_reviewer ON reviews(reviewer_id);
	CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read);`},
}
