package executor

var (
	_ Pool       = (*BunPool)(nil)
	_ PooledConn = (*bunPooledConn)(nil)
)
