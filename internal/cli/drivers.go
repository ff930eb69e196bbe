// SPDX-License-Identifier: Apache-2.0

package cli

import (
	// SQL drivers for --query extraction.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// drivers lists the database/sql driver names accepted by --driver.
var drivers = []string{"sqlite", "pgx"}
