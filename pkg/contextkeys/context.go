package contextkeys

type contextKey string

// DBContextKey stores the request's *gorm.DB, both on context.Context and,
// as a plain string, on the gin context.
const DBContextKey = contextKey("db")
