// Package all registers every storage backend and the drivers they need.
// Commands blank-import it.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "hretl/internal/storage/mssql"
	_ "hretl/internal/storage/mysql"
	_ "hretl/internal/storage/postgres"
	_ "hretl/internal/storage/sqlite"
)
