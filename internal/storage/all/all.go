// Package all registers every storage backend. Import it for side effects
// from binaries that should support all backends:
//
//	_ "sheetetl/internal/storage/all"
package all

import (
	_ "sheetetl/internal/storage/mssql"
	_ "sheetetl/internal/storage/postgres"
	_ "sheetetl/internal/storage/sqlite"
)
