package db

// SchemaSQL defines the run history table.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS run SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS run_id ON run TYPE string;
    DEFINE FIELD IF NOT EXISTS content_id ON run TYPE string;
    DEFINE FIELD IF NOT EXISTS source_type ON run TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS source_id ON run TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS required_keywords ON run TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS title ON run TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS metadata ON run TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS content_hash ON run TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS analysis ON run TYPE array<object> FLEXIBLE DEFAULT [];
    DEFINE FIELD IF NOT EXISTS summary ON run TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS status ON run TYPE string;
    DEFINE FIELD IF NOT EXISTS error ON run TYPE string DEFAULT '';
    DEFINE FIELD IF NOT EXISTS started_at ON run TYPE datetime;
    DEFINE FIELD IF NOT EXISTS finished_at ON run TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS run_started ON run FIELDS started_at;
    DEFINE INDEX IF NOT EXISTS run_status ON run FIELDS status;
    DEFINE INDEX IF NOT EXISTS run_content_hash ON run FIELDS content_hash;
`
