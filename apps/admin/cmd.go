package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	echoapi "github.com/simonmuehling/educafric-platform-sub005/apps/api/echo"
	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
)

var (
	errHelp = errors.New("help provided")

	roles = map[string]string{
		"admin":    echoapi.RoleAdmin,
		"director": echoapi.RoleDirector,
		"teacher":  echoapi.RoleTeacher,
		"parent":   echoapi.RoleParent,
		"student":  echoapi.RoleStudent,
	}
)

type commandLine struct {
	conf      *core.Config
	db        *sql.DB
	svc       *bulletin.Service
	guardians bulletin.GuardianRepository
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run the database migrations (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  recompute -class CLASS -term TERM -year YEAR - recompute the ranks of a class")
	fmt.Fprintln(cli.out, "  token -user ID -role ROLE [-name NAME] [-email EMAIL] - issue an API token")
	fmt.Fprintln(cli.out, "  addguardian -student ID -name NAME [-email EMAIL] [-phone PHONE] [-lang fr|en] - register a guardian")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	recomputeCmd := flag.NewFlagSet("recompute", flag.ContinueOnError)
	recomputeClass := recomputeCmd.String("class", "", "The class ID.")
	recomputeTerm := recomputeCmd.String("term", "", "The term ID.")
	recomputeYear := recomputeCmd.String("year", "", "The academic year ID.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUser := tokenCmd.String("user", "", "The user ID (token subject).")
	tokenRole := tokenCmd.String("role", "", "Comma separated roles: admin, director, teacher, parent, student.")
	tokenName := tokenCmd.String("name", "", "The user's name.")
	tokenEmail := tokenCmd.String("email", "", "The user's email.")

	guardianCmd := flag.NewFlagSet("addguardian", flag.ContinueOnError)
	guardianStudent := guardianCmd.String("student", "", "The student ID.")
	guardianName := guardianCmd.String("name", "", "The guardian's name.")
	guardianEmail := guardianCmd.String("email", "", "The guardian's email.")
	guardianPhone := guardianCmd.String("phone", "", "The guardian's phone number (WhatsApp).")
	guardianLang := guardianCmd.String("lang", "fr", "The guardian's language: fr or en.")

	for _, fs := range []*flag.FlagSet{recomputeCmd, tokenCmd, guardianCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "recompute":
		if err := recomputeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *recomputeClass == "" || *recomputeTerm == "" || *recomputeYear == "" {
			recomputeCmd.Usage()
			return errHelp
		}
		return cli.recompute(bulletin.ClassKey{
			ClassID:        *recomputeClass,
			TermID:         *recomputeTerm,
			AcademicYearID: *recomputeYear,
		})

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUser == "" || *tokenRole == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUser, *tokenName, *tokenEmail, *tokenRole)

	case "addguardian":
		if err := guardianCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *guardianStudent == "" || *guardianName == "" || (*guardianEmail == "" && *guardianPhone == "") {
			guardianCmd.Usage()
			return errHelp
		}
		return cli.addGuardian(bulletin.Guardian{
			StudentID: *guardianStudent,
			Name:      *guardianName,
			Email:     *guardianEmail,
			Phone:     *guardianPhone,
			Language:  *guardianLang,
		})

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) recompute(key bulletin.ClassKey) error {
	if err := cli.svc.RecomputeClass(context.Background(), key); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "ranks of class %s (%s, %s) recomputed\n", key.ClassID, key.TermID, key.AcademicYearID)
	return nil
}

func (cli *commandLine) token(userID, name, email, roleNames string) error {
	var granted []string
	for _, roleName := range strings.Split(roleNames, ",") {
		role, ok := roles[core.CleanString(roleName, true)]
		if !ok {
			return fmt.Errorf("unknown role %q", roleName)
		}
		granted = append(granted, role)
	}

	claims := echoapi.NewClaims(cli.conf, userID, name, email, granted...)
	token, err := echoapi.GenerateToken(cli.conf, claims)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) addGuardian(g bulletin.Guardian) error {
	g.StudentID = core.CleanString(g.StudentID)
	g.Name = core.CleanString(g.Name)
	g.Email = core.CleanString(g.Email, true)
	g.Phone = core.CleanString(g.Phone)
	g.Language = core.CleanString(g.Language, true)
	if g.Language != "fr" && g.Language != "en" {
		return fmt.Errorf("unsupported language %q", g.Language)
	}

	g, err := cli.guardians.AddGuardian(context.Background(), g)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "guardian %s added to student %s\n", g.ID, g.StudentID)
	return nil
}
