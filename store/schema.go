package store

// schemaSQL is the DDL for all tables.
const schemaSQL = `
-- Processed document registry with hash-based change detection
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    status TEXT DEFAULT 'processing',
    failed_step TEXT,
    element_count INTEGER DEFAULT 0,
    problem_count INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per solved problem
CREATE TABLE IF NOT EXISTS problems (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    label TEXT NOT NULL,
    stem TEXT,
    num_subquestions INTEGER NOT NULL,
    position INTEGER NOT NULL
);

-- One row per subquestion answer
CREATE TABLE IF NOT EXISTS answers (
    id INTEGER PRIMARY KEY,
    problem_id INTEGER NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    sub_id TEXT,
    sub_text TEXT,
    answer TEXT,
    reason TEXT,
    position INTEGER NOT NULL
);

-- Full-text search via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS answers_fts USING fts5(
    sub_text,
    answer,
    reason,
    content='answers',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS answers_ai AFTER INSERT ON answers BEGIN
    INSERT INTO answers_fts(rowid, sub_text, answer, reason) VALUES (new.id, new.sub_text, new.answer, new.reason);
END;
CREATE TRIGGER IF NOT EXISTS answers_ad AFTER DELETE ON answers BEGIN
    INSERT INTO answers_fts(answers_fts, rowid, sub_text, answer, reason) VALUES ('delete', old.id, old.sub_text, old.answer, old.reason);
END;
CREATE TRIGGER IF NOT EXISTS answers_au AFTER UPDATE ON answers BEGIN
    INSERT INTO answers_fts(answers_fts, rowid, sub_text, answer, reason) VALUES ('delete', old.id, old.sub_text, old.answer, old.reason);
    INSERT INTO answers_fts(rowid, sub_text, answer, reason) VALUES (new.id, new.sub_text, new.answer, new.reason);
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_problems_document ON problems(document_id);
CREATE INDEX IF NOT EXISTS idx_answers_problem ON answers(problem_id);
CREATE INDEX IF NOT EXISTS idx_answers_document ON answers(document_id);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
`
