package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/simonmuehling/educafric-platform-sub005/apps/api/echo"
	testutil "github.com/simonmuehling/educafric-platform-sub005/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	out := new(bytes.Buffer)

	// start CLI
	return &commandLine{
		conf:      env.Conf,
		db:        new(sql.DB),
		svc:       env.Svc,
		guardians: env.Guardians,
		out:       out,
	}, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			checkErr(t, tt, cli.run(args))
			assert.Contains(t, out.String(), "Usage:")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "bulletins", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	t.Run("no database", func(t *testing.T) {
		cli.db = nil
		checkErr(t, cliTest{wantErrStr: "migrations need a database connection"}, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_recompute(t *testing.T) {
	cli, env, out := setup(t)
	ctx := context.Background()

	low := testutil.CreateBulletin(t, env.Svc, testutil.StudentID(1), testutil.GradeInput("math", 10, 1))
	high := testutil.CreateBulletin(t, env.Svc, testutil.StudentID(2), testutil.GradeInput("math", 15, 1))

	tests := []cliTest{
		{name: "no args", args: []string{"recompute"}, wantErr: errHelp},
		{name: "missing year", args: []string{"recompute", "-class", "6A", "-term", "T1"}, wantErr: errHelp},
		{name: "recompute", args: []string{"recompute", "-class", "6A", "-term", "T1", "-year", "2025-2026"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	assert.Contains(t, out.String(), "ranks of class 6A (T1, 2025-2026) recomputed")

	b, err := env.Svc.Get(ctx, high.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.ClassRank)
	b, err = env.Svc.Get(ctx, low.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, b.ClassRank)
}

func Test_commandLine_token(t *testing.T) {
	cli, env, out := setup(t)

	tests := []cliTest{
		{name: "no args", args: []string{"token"}, wantErr: errHelp},
		{name: "no role", args: []string{"token", "-user", "director-3"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"token", "-user", "director-3", "-role", "janitor"}, wantErrStr: "unknown role \"janitor\""},
		{
			name:  "director",
			args:  []string{"token", "-user", "director-3", "-role", "director,teacher", "-name", "Awa"},
			extra: []string{echoapi.RoleDirector, echoapi.RoleTeacher},
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil {
				return
			}

			claims := new(echoapi.Claims)
			_, err = jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
				return []byte(env.Conf.SecretKey), nil
			})
			require.NoError(t, err)
			assert.Equal(t, "director-3", claims.Subject)
			assert.Equal(t, "Awa", claims.Name)
			assert.Equal(t, tt.extra, claims.Roles)
		})
	}
}

func Test_commandLine_addGuardian(t *testing.T) {
	cli, env, _ := setup(t)
	student := testutil.StudentID(1)

	tests := []cliTest{
		{name: "no args", args: []string{"addguardian"}, wantErr: errHelp},
		{name: "no contact", args: []string{"addguardian", "-student", student, "-name", "Mama"}, wantErr: errHelp},
		{
			name:       "bad language",
			args:       []string{"addguardian", "-student", student, "-name", "Mama", "-phone", "+237650000000", "-lang", "de"},
			wantErrStr: "unsupported language \"de\"",
		},
		{name: "by phone", args: []string{"addguardian", "-student", student, "-name", "Mama", "-phone", "+237650000000"}},
		{name: "by email", args: []string{"addguardian", "-student", student, "-name", "Papa", "-email", " Papa@Test.cm ", "-lang", "EN"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	guardians, err := env.Guardians.GuardiansOf(context.Background(), student)
	require.NoError(t, err)
	require.Len(t, guardians, 2)
	assert.Equal(t, "fr", guardians[0].Language)
	assert.Equal(t, "+237650000000", guardians[0].Phone)
	assert.Equal(t, "papa@test.cm", guardians[1].Email)
	assert.Equal(t, "en", guardians[1].Language)
}
