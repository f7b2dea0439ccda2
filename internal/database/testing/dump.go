// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

// DumpTable dumps the contents of the given tables to stdout.
// This is useful for debugging tests. It is not intended for use
// in production code.
func DumpTable(c *gc.C, db *sql.DB, tables ...string) {
	for _, t := range tables {
		rows, err := db.Query(fmt.Sprintf("SELECT * FROM %q", t))
		c.Assert(err, jc.ErrorIsNil)
		defer rows.Close()

		cols, err := rows.Columns()
		c.Assert(err, jc.ErrorIsNil)

		buffer := new(bytes.Buffer)
		writer := tabwriter.NewWriter(buffer, 0, 8, 4, ' ', 0)
		for _, col := range cols {
			fmt.Fprintf(writer, "%s\t", col)
		}
		fmt.Fprintln(writer)

		vals := make([]any, len(cols))
		for i := range vals {
			vals[i] = new(any)
		}

		for rows.Next() {
			err = rows.Scan(vals...)
			c.Assert(err, jc.ErrorIsNil)

			for _, val := range vals {
				fmt.Fprintf(writer, "%v\t", *val.(*any))
			}
			fmt.Fprintln(writer)
		}
		c.Assert(rows.Err(), jc.ErrorIsNil)
		writer.Flush()

		fmt.Fprintf(os.Stdout, "Table - %s:\n%s\n", t, buffer.String())
	}
}
