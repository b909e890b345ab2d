package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/campus-routine-api/internal/dto"
	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/service"
	appErrors "github.com/noah-isme/campus-routine-api/pkg/errors"
)

var errHelp = errors.New("help provided")

type routineImporter interface {
	Import(ctx context.Context, data []byte, opts dto.ImportOptions) (*models.ImportResult, error)
}

type tokenIssuer interface {
	IssueToken(userID, fullName, email string, role models.UserRole) (string, time.Time, error)
}

type commandLine struct {
	out      io.Writer
	tokens   tokenIssuer
	importer routineImporter
	migrate  func() ([]string, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  template [-out FILE]                       - write the bulk import CSV template")
	fmt.Fprintln(cli.out, "  import -file FILE [-lenient] [-dry-run]    - validate and commit a CSV or .xls routine")
	fmt.Fprintln(cli.out, "  migrate                                    - apply pending database migrations")
	fmt.Fprintln(cli.out, "  token -user ID -name NAME -role ROLE       - mint a development access token")
}

// needsDatabase reports whether the subcommand in args talks to Postgres.
func needsDatabase(args []string) bool {
	if len(args) < 2 {
		return false
	}
	return args[1] == "import" || args[1] == "migrate"
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "template":
		cmd := flag.NewFlagSet("template", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		out := cmd.String("out", "", "Destination file. Defaults to stdout.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.template(*out)
	case "import":
		cmd := flag.NewFlagSet("import", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		file := cmd.String("file", "", "CSV or .xls file to import.")
		lenient := cmd.Bool("lenient", false, "Fill missing columns with defaults instead of rejecting the row.")
		dryRun := cmd.Bool("dry-run", false, "Validate without committing.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *file == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.importFile(*file, !*lenient, *dryRun)
	case "migrate":
		if cli.migrate == nil {
			return errors.New("migrate is not available")
		}
		applied, err := cli.migrate()
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cli.out, "database is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cli.out, "applied %s\n", name)
		}
		return nil
	case "token":
		cmd := flag.NewFlagSet("token", flag.ContinueOnError)
		cmd.SetOutput(cli.out)
		user := cmd.String("user", "", "User id carried in the token.")
		name := cmd.String("name", "", "Full name; GET /routines/me matches it against the teacher column.")
		email := cmd.String("email", "", "Email address.")
		role := cmd.String("role", string(models.RoleAdmin), "Role: ADMIN, MODERATOR, TEACHER, STUDENT, CAFETERIA_MANAGER or LIBRARIAN.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *user == "" {
			cmd.Usage()
			return errHelp
		}
		token, expiresAt, err := cli.tokens.IssueToken(*user, *name, *email, models.UserRole(strings.ToUpper(*role)))
		if err != nil {
			return err
		}
		fmt.Fprintln(cli.out, token)
		fmt.Fprintf(cli.out, "expires %s\n", expiresAt.Format(time.RFC3339))
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) template(out string) error {
	data, err := service.TemplateCSV()
	if err != nil {
		return err
	}
	if out == "" {
		_, err = cli.out.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	fmt.Fprintf(cli.out, "template written to %s\n", out)
	return nil
}

func (cli *commandLine) importFile(path string, strict, dryRun bool) error {
	if cli.importer == nil {
		return errors.New("import is not available")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	opts := dto.ImportOptions{Strict: strict, DryRun: dryRun, Format: models.ImportFormatCSV}
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		opts.Format = models.ImportFormatXLS
	}

	result, err := cli.importer.Import(context.Background(), data, opts)
	if err != nil {
		cli.printImportError(err)
		return err
	}
	if result.Committed {
		fmt.Fprintf(cli.out, "committed %d entries\n", result.Count)
	} else {
		fmt.Fprintf(cli.out, "dry run: %d entries would be committed\n", result.Count)
	}
	return nil
}

func (cli *commandLine) printImportError(err error) {
	appErr := appErrors.FromError(err)
	if appErr.Details == nil {
		return
	}
	payload, marshalErr := json.MarshalIndent(appErr.Details, "", "  ")
	if marshalErr != nil {
		return
	}
	fmt.Fprintf(cli.out, "%s:\n%s\n", appErr.Message, payload)
}
