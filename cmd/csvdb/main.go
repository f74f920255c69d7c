// Command csvdb inspects and manipulates a csvdb storage directory.
//
// Usage:
//
//	csvdb -dir ./data list
//	csvdb -dir ./data dump -table users [-format csv|json|xml]
//	csvdb -dir ./data create -table users -columns "name TEXT,score NUMERIC"
//	csvdb -dir ./data import -table cities -file cities.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dayjn1/csvdb"
	"github.com/dayjn1/csvdb/internal/exporter"
	"github.com/dayjn1/csvdb/internal/importer"
)

var (
	flagDir      = flag.String("dir", ".", "Storage directory")
	flagTable    = flag.String("table", "", "Table name")
	flagFormat   = flag.String("format", "csv", "Dump format: csv, json, xml")
	flagColumns  = flag.String("columns", "", "Column list for create: \"name TYPE,name TYPE,...\"")
	flagFile     = flag.String("file", "", "Input file for import (- for stdin)")
	flagCompress = flag.Bool("gzip", false, "Create new tables as gzip-compressed .csv.gz files")
	flagVerbose  = flag.Bool("v", false, "Verbose logging")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: csvdb [flags] list|dump|create|import")
		flag.PrintDefaults()
		os.Exit(2)
	}

	opts := []csvdb.Option{}
	if *flagCompress {
		opts = append(opts, csvdb.WithCompression())
	}
	if *flagVerbose {
		opts = append(opts, csvdb.WithLogger(newStderrLogger()))
	}
	drv, err := csvdb.Open(*flagDir, opts...)
	if err != nil {
		log.Fatalf("open %s: %v", *flagDir, err)
	}
	defer drv.Close()

	switch cmd := flag.Arg(0); cmd {
	case "list":
		runList(drv)
	case "dump":
		runDump(drv)
	case "create":
		runCreate(drv)
	case "import":
		runImport(drv)
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}

func runList(drv *csvdb.Driver) {
	for _, name := range drv.ListTables() {
		tbl, err := drv.GetTable(name)
		if err != nil {
			log.Fatal(err)
		}
		cols := make([]string, 0, tbl.Header().Len())
		for i := 0; i < tbl.Header().Len(); i++ {
			c := tbl.Header().Column(i)
			cols = append(cols, fmt.Sprintf("%s %s", c.Name, c.Type))
		}
		fmt.Printf("%s\t%d rows\t(%s)\n", name, tbl.Len(), strings.Join(cols, ", "))
	}
}

func runDump(drv *csvdb.Driver) {
	tbl := mustTable(drv)
	var err error
	switch *flagFormat {
	case "csv":
		err = exporter.ExportCSV(os.Stdout, tbl, exporter.Options{})
	case "json":
		err = exporter.ExportJSON(os.Stdout, tbl, exporter.Options{PrettyJSON: true})
	case "xml":
		err = exporter.ExportXML(os.Stdout, tbl, exporter.Options{})
	default:
		log.Fatalf("unknown format %q", *flagFormat)
	}
	if err != nil {
		log.Fatalf("dump %s: %v", tbl.Name(), err)
	}
}

func runCreate(drv *csvdb.Driver) {
	if *flagTable == "" || *flagColumns == "" {
		log.Fatal("create needs -table and -columns")
	}
	specs := strings.Split(*flagColumns, ",")
	cols := make([]csvdb.Column, 0, len(specs))
	for _, spec := range specs {
		name, keyword, ok := strings.Cut(strings.TrimSpace(spec), " ")
		if !ok {
			log.Fatalf("bad column spec %q, want \"name TYPE\"", spec)
		}
		t, err := csvdb.ParseColumnType(keyword)
		if err != nil {
			log.Fatal(err)
		}
		cols = append(cols, csvdb.Column{Name: name, Type: t})
	}
	header, err := csvdb.NewRowHeader(cols)
	if err != nil {
		log.Fatal(err)
	}
	if _, err := drv.CreateTable(*flagTable, header); err != nil {
		log.Fatal(err)
	}
	if err := drv.Commit(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("created table %q with %d columns\n", *flagTable, len(cols))
}

func runImport(drv *csvdb.Driver) {
	if *flagTable == "" || *flagFile == "" {
		log.Fatal("import needs -table and -file")
	}
	src := os.Stdin
	if *flagFile != "-" {
		f, err := os.Open(*flagFile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		src = f
	}
	res, err := importer.ImportCSV(context.Background(), drv, *flagTable, src, nil)
	if err != nil {
		log.Fatalf("import: %v", err)
	}
	if err := drv.Commit(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("imported %d rows into %q (delimiter %q, encoding %s)\n",
		res.RowsImported, res.TableName, res.Delimiter, res.Encoding)
}

func newStderrLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func mustTable(drv *csvdb.Driver) *csvdb.Table {
	if *flagTable == "" {
		log.Fatal("missing -table")
	}
	tbl, err := drv.GetTable(*flagTable)
	if err != nil {
		log.Fatal(err)
	}
	return tbl
}
