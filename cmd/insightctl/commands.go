package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	reportstore "github.com/dalemusser/insighthub/internal/app/store/reports"
	userstore "github.com/dalemusser/insighthub/internal/app/store/users"
	"github.com/dalemusser/insighthub/internal/app/system/passwords"
	"github.com/dalemusser/insighthub/internal/domain/models"
	"github.com/spf13/pflag"
)

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

type reportStore interface {
	GetByExternalID(ctx context.Context, powerBIReportID string) (*models.Report, error)
	Create(ctx context.Context, r models.Report) (models.Report, error)
	Grant(ctx context.Context, userID, reportID string) (bool, error)
	Revoke(ctx context.Context, userID, reportID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]models.Report, error)
}

// env is what a command runs against.
type env struct {
	users   userStore
	reports reportStore
	out     io.Writer
}

// command is one insightctl subcommand.
type command struct {
	Name    string
	Summary string
	Run     func(ctx context.Context, e *env, args []string) error
}

var commands = []*command{
	{Name: "user-add", Summary: "create an account", Run: userAdd},
	{Name: "set-password", Summary: "replace an account's password", Run: setPassword},
	{Name: "report-add", Summary: "add a Power BI report to the catalog", Run: reportAdd},
	{Name: "grant", Summary: "give an account access to a report", Run: grant},
	{Name: "revoke", Summary: "remove an account's access to a report", Run: revoke},
	{Name: "list-grants", Summary: "list the reports an account can open", Run: listGrants},
}

func lookup(name string) *command {
	for _, c := range commands {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// parse parses args into fs and fails when any of required is blank.
func parse(fs *pflag.FlagSet, args []string, required ...string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s: unexpected argument %q", fs.Name(), fs.Arg(0))
	}
	var missing []string
	for _, name := range required {
		if v, _ := fs.GetString(name); strings.TrimSpace(v) == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing %s", fs.Name(), strings.Join(missing, ", "))
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| accounts                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func userAdd(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("user-add", pflag.ContinueOnError)
	email := fs.String("email", "", "login email")
	name := fs.String("name", "", "display name")
	role := fs.String("role", "", "role label")
	designation := fs.String("designation", "", "job title")
	password := fs.String("password", "", "initial password")
	if err := parse(fs, args, "email", "password"); err != nil {
		return err
	}

	if err := passwords.Validate(*password); err != nil {
		return err
	}
	hash, err := passwords.Hash(*password)
	if err != nil {
		return err
	}

	u, err := e.users.Create(ctx, models.User{
		Name:         *name,
		Email:        *email,
		PasswordHash: hash,
		Role:         *role,
		Designation:  *designation,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "created user %s (%s)\n", u.ID, u.Email)
	return nil
}

func setPassword(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("set-password", pflag.ContinueOnError)
	email := fs.String("email", "", "login email")
	password := fs.String("password", "", "new password")
	if err := parse(fs, args, "email", "password"); err != nil {
		return err
	}

	if err := passwords.Validate(*password); err != nil {
		return err
	}
	u, err := findUser(ctx, e, *email)
	if err != nil {
		return err
	}
	hash, err := passwords.Hash(*password)
	if err != nil {
		return err
	}
	if err := e.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "password updated for %s\n", u.Email)
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| catalog                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func reportAdd(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("report-add", pflag.ContinueOnError)
	pbiID := fs.String("pbi-id", "", "Power BI report id")
	title := fs.String("title", "", "title shown on the dashboard")
	typ := fs.String("type", "", "Accounting or Manufacturing")
	description := fs.String("description", "", "optional description")
	if err := parse(fs, args, "pbi-id", "title", "type"); err != nil {
		return err
	}

	rt, err := models.ParseReportType(*typ)
	if err != nil {
		return err
	}
	r, err := e.reports.Create(ctx, models.Report{
		Title:           strings.TrimSpace(*title),
		PowerBIReportID: *pbiID,
		Type:            rt,
		Description:     *description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "created report %s (%s, %s)\n", r.ID, r.PowerBIReportID, r.Type)
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| grants                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func grant(ctx context.Context, e *env, args []string) error {
	u, r, err := grantTarget(ctx, e, "grant", args)
	if err != nil {
		return err
	}
	created, err := e.reports.Grant(ctx, u.ID, r.ID)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(e.out, "granted %s to %s\n", r.PowerBIReportID, u.Email)
	} else {
		fmt.Fprintf(e.out, "%s already has %s\n", u.Email, r.PowerBIReportID)
	}
	return nil
}

func revoke(ctx context.Context, e *env, args []string) error {
	u, r, err := grantTarget(ctx, e, "revoke", args)
	if err != nil {
		return err
	}
	removed, err := e.reports.Revoke(ctx, u.ID, r.ID)
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintf(e.out, "revoked %s from %s\n", r.PowerBIReportID, u.Email)
	} else {
		fmt.Fprintf(e.out, "%s had no grant for %s\n", u.Email, r.PowerBIReportID)
	}
	return nil
}

func listGrants(ctx context.Context, e *env, args []string) error {
	fs := pflag.NewFlagSet("list-grants", pflag.ContinueOnError)
	email := fs.String("email", "", "login email")
	if err := parse(fs, args, "email"); err != nil {
		return err
	}

	u, err := findUser(ctx, e, *email)
	if err != nil {
		return err
	}
	reps, err := e.reports.ListForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(reps) == 0 {
		fmt.Fprintf(e.out, "%s has no reports\n", u.Email)
		return nil
	}

	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tTITLE\tPOWER BI ID")
	for _, r := range reps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Type, r.Title, r.PowerBIReportID)
	}
	return tw.Flush()
}

func grantTarget(ctx context.Context, e *env, name string, args []string) (*models.User, *models.Report, error) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	email := fs.String("email", "", "login email")
	report := fs.String("report", "", "Power BI report id")
	if err := parse(fs, args, "email", "report"); err != nil {
		return nil, nil, err
	}

	u, err := findUser(ctx, e, *email)
	if err != nil {
		return nil, nil, err
	}
	r, err := e.reports.GetByExternalID(ctx, strings.TrimSpace(*report))
	if errors.Is(err, reportstore.ErrNotFound) {
		return nil, nil, fmt.Errorf("no catalog report with Power BI id %q", *report)
	}
	if err != nil {
		return nil, nil, err
	}
	return u, r, nil
}

func findUser(ctx context.Context, e *env, email string) (*models.User, error) {
	u, err := e.users.GetByEmail(ctx, email)
	if errors.Is(err, userstore.ErrNotFound) {
		return nil, fmt.Errorf("no account for %q", email)
	}
	return u, err
}
