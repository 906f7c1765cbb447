package service

// Principal is the resolved (tenant, user) pair authorizing an operation.
// Every core operation receives one explicitly; the core never reads
// request-scoped globals.
type Principal struct {
	TenantID uint
	UserID   uint
}
