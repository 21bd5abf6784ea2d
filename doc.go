// Package reportio automates recurring database reports: it runs a list of
// SQL queries, caches every result to a compressed columnar file, and
// exports the datasets to an Excel workbook with one worksheet per query.
//
// A run that fails (a dropped connection, a bad query, a full disk) backs
// its cached datasets up before terminating. Re-running the same report on
// the same calendar day resumes from that backup: already-completed queries
// are read back from disk instead of hitting the database again.
//
// # Features
//
//   - One worksheet per query, written through excelize stream writers
//   - Datasets larger than a worksheet (1,048,576 rows or 16,384 columns)
//     spill to CSV sidecar files, optionally compressed
//   - Same-day crash resume from parquet backups of completed queries
//   - Connection memoization with credential retry for ODBC-style sources
//   - Sequential or parallel query dispatch with a serial fallback
//   - Cron scheduling for unattended runs
//
// # Basic Usage
//
//	report, err := reportio.New("Sales")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer report.Close()
//
//	err = report.AddQuery(reportio.Query{
//	    Name:       "Category",
//	    SQL:        "SELECT * FROM CATEGORY",
//	    SourceKind: "sqlite",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	locations, err := report.Run(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(locations)
//
// # Configuration
//
// A report reads an INI file (./config.txt unless WithConfigPath says
// otherwise) and rewrites it with the values it discovered at runtime:
//
//	[REPORT]
//	export_to         = out/Sales
//	backup_folder     = backup
//	temp_files_folder = temp_files
//
//	[DB]
//	sqlite = file:sales.db
//
// Relative paths resolve against the config file's directory. The [DB]
// section maps each source to its connection string.
//
// # Sources
//
// The sqlite kind works out of the box. Other kinds need a driver mapping,
// with the named driver's package imported by the embedding program:
//
//	report.Registry().RegisterDriver("teradata", "odbc")
//
// When a connection attempt fails, the report asks its credential provider
// (a terminal prompt by default; the environment or a static pair via
// WithCredentials) and retries with the fresh credentials embedded in the
// connection string, five attempts in total.
//
// # Backup and Resume
//
// Every named query's dataset is cached as a parquet file with gzip
// compressed pages. When a run fails, the cache is copied into the backup
// folder along with a startDate.txt marker holding the run's start date. A
// rerun on the same calendar date reads the backed up datasets instead of
// re-querying; a rerun on a later date purges them and starts fresh.
// SimpleReport additionally persists the query list itself, so an
// unattended same-day rerun needs no re-registration at all.
package reportio
