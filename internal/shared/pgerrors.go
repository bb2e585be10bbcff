package shared

// UniqueViolation is the PostgreSQL SQLSTATE for a unique constraint breach.
const UniqueViolation = "23505"
