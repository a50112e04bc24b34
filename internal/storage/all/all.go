// Package all registers every storage backend with the factory.
// Binaries blank-import it so config alone selects the backend.
package all

import (
	_ "salesmart/internal/storage/mssql"
	_ "salesmart/internal/storage/mysql"
	_ "salesmart/internal/storage/postgres"
	_ "salesmart/internal/storage/sqlite"
)
