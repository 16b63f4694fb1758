package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/sistemaeducativo/gradebook/core/grade"
	"github.com/sistemaeducativo/gradebook/core/user"
	"github.com/sistemaeducativo/gradebook/services/identity"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB // postgres only, for migrations
	usrSvc   *user.Service
	gradeSvc *grade.Service
	provider *identity.Provider
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                       - run a goose migration command")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME -control NUMBER -role ROLE  - create a user (password prompted)")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                                   - reset user's password")
	fmt.Fprintln(cli.out, "  importusers -file users.csv                                  - create the users listed in a CSV file")
	fmt.Fprintln(cli.out, "  export -subject ID -group GROUP [-out FILE]                  - export the grades of a section to CSV")
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserControl := addUserCmd.String("control", "", "The user's control number.")
	addUserRole := addUserCmd.String("role", "", "One of POWERUSER, ADMIN, DOCENTE, ALUMNO.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	importUsersCmd := flag.NewFlagSet("importusers", flag.ContinueOnError)
	importUsersFile := importUsersCmd.String("file", "", "CSV file with columns email,nombre,role,numeroControl,password.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportSubject := exportCmd.String("subject", "", "The subject ID.")
	exportGroup := exportCmd.String("group", "", "The group.")
	exportOut := exportCmd.String("out", "", "Output file. Defaults to calificaciones_<code>_<group>.csv")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, importUsersCmd, exportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Email:         *addUserEmail,
			Name:          *addUserName,
			Role:          user.Role(*addUserRole),
			ControlNumber: *addUserControl,
			Password:      pwd,
		})

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "importusers":
		if err := importUsersCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importUsersFile == "" {
			importUsersCmd.Usage()
			return errHelp
		}
		return cli.importUsers(*importUsersFile)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportSubject == "" || *exportGroup == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(*exportSubject, *exportGroup, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}
