// Command cohortsql is a thin driver around the cohort query compiler: it
// loads a YAML cohort specification and a YAML catalog mapping, compiles
// one or more specs for a chosen SQL dialect, and either prints the
// resulting statement plan (--dry-run, or no --db-name given) or executes
// it against a real database/sql connection opened via the dialect
// package's Open* functions. Grounded on cmd/mysqldef/mysqldef.go's
// structured connection-flag and password-prompt shape.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/cohortsql/compiler/compiler"
	"github.com/cohortsql/compiler/specdsl"
	"github.com/cohortsql/compiler/util"
)

type options struct {
	Dialect        string   `short:"d" long:"dialect" description:"Target SQL dialect" value-name:"mysql|postgres|mssql|sqlite" required:"true"`
	Spec           []string `long:"spec" description:"YAML cohort specification file (repeat for a concurrent multi-spec compile)" value-name:"path" required:"true"`
	Catalog        string   `long:"catalog" description:"YAML catalog-mapping file" value-name:"path" required:"true"`
	DBName         string   `long:"db-name" description:"Database/file to execute the compiled plan against; omit to print the plan instead" value-name:"db_name"`
	Host           string   `short:"h" long:"host" description:"Host to connect to the backend server" value-name:"host_name" default:"127.0.0.1"`
	Port           int      `short:"P" long:"port" description:"Port used for the connection (0 uses the dialect's default port)" value-name:"port_num"`
	User           string   `short:"u" long:"user" description:"User name" value-name:"user_name"`
	Password       string   `short:"p" long:"password" description:"User password"`
	SslMode        string   `long:"ssl-mode" description:"Postgres sslmode" value-name:"ssl_mode"`
	PasswordPrompt bool     `long:"password-prompt" description:"Prompt for a password instead of reading --password"`
	DryRun         bool     `long:"dry-run" description:"Print the compiled statement list instead of executing it"`
	DebugTrace     bool     `long:"debug-trace" description:"Pretty-print the DAG and every emitted statement as each phase completes"`
	Concurrency    int      `long:"concurrency" description:"Max concurrent compiles across multiple --spec files (0 disables concurrency, negative is unlimited)" default:"4"`
	Help           bool     `long:"help" description:"Show this help"`
}

func parseOptions(args []string) (*options, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options]"
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	return &opts, nil
}

func main() {
	util.InitSlog()

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		slog.Error("cohortsql: option parsing failed", "error", err)
		os.Exit(1)
	}

	password := opts.Password
	if opts.PasswordPrompt {
		fmt.Print("Enter Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			slog.Error("cohortsql: reading password", "error", err)
			os.Exit(1)
		}
		password = string(pass)
	}

	catalogDoc, err := parseCatalogFile(opts.Catalog)
	if err != nil {
		slog.Error("cohortsql: loading catalog", "error", err)
		os.Exit(1)
	}

	plans, err := concurrentMapFuncWithError(opts.Spec, opts.Concurrency, func(specPath string) (*compiler.Plan, error) {
		return compileOne(specPath, opts, catalogDoc)
	})
	if err != nil {
		slog.Error("cohortsql: compile failed", "error", err)
		os.Exit(1)
	}

	for i, plan := range plans {
		if len(plans) > 1 {
			fmt.Printf("-- %s --\n", opts.Spec[i])
		}
		if opts.DryRun || opts.DBName == "" {
			printPlan(plan)
			continue
		}
		conn := connOptions{
			host: opts.Host, port: opts.Port, user: opts.User,
			password: password, dbName: opts.DBName, sslMode: opts.SslMode,
		}
		if err := runPlan(context.Background(), opts.Dialect, conn, plan); err != nil {
			slog.Error("cohortsql: execution failed", "spec", opts.Spec[i], "error", err)
			os.Exit(1)
		}
	}
}

func compileOne(specPath string, opts *options, catalogDoc *catalogDocument) (*compiler.Plan, error) {
	adapter, err := newAdapter(opts.Dialect)
	if err != nil {
		return nil, err
	}
	cat, err := buildCatalog(catalogDoc, adapter)
	if err != nil {
		return nil, err
	}
	columns, population, err := specdsl.LoadFile(specPath)
	if err != nil {
		return nil, err
	}

	compilerOpts := []compiler.Option{}
	if opts.DebugTrace {
		compilerOpts = append(compilerOpts, compiler.WithTraceSink(os.Stderr))
	}
	c := compiler.New(cat, compilerOpts...)
	return c.Compile(columns, population)
}

func printPlan(plan *compiler.Plan) {
	for _, stmt := range plan.Statements {
		fmt.Println(stmt.SQL + ";")
	}
}

func runPlan(ctx context.Context, dialectName string, conn connOptions, plan *compiler.Plan) error {
	adapter, err := newAdapter(dialectName)
	if err != nil {
		return err
	}
	db, err := openAdapterDB(dialectName, conn)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := executePlan(ctx, db, adapter, plan)
	if err != nil {
		return err
	}
	defer rows.Close()
	// executePlan only runs cleanup on its own error paths, since the final
	// cursor still depends on the interim tables; once we've drained it here,
	// this is the remaining exit path that must still run it (§5).
	defer func() {
		if err := adapter.PostExecuteCleanup(ctx, db, plan.CreatedTables); err != nil {
			slog.Warn("cohortsql: cleanup failed", "error", err)
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(cols, "\t"))
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprint(v)
		}
		fmt.Println(strings.Join(parts, "\t"))
	}
	return rows.Err()
}
