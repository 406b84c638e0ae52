package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/flowtrack/server/pkg/bootstrap"
	"github.com/flowtrack/server/pkg/engine"
	"github.com/flowtrack/server/pkg/infrastructure/oauth"
	"github.com/flowtrack/server/pkg/infrastructure/sentry"
	"github.com/flowtrack/server/pkg/integrations/strava"
)

const usage = `Usage: flowtrack <command> [flags]

Commands:
  exchange  -code CODE                 exchange an authorization code for tokens
  refresh   -refresh-token TOKEN       refresh an access token
  list      [-type -from -to -min-km -q -sort -page -per-page]
  detail    -id ACTIVITY_ID            activity, stream table and analysis

The access token for list and detail is read from -token or STRAVA_ACCESS_TOKEN.
`

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := bootstrap.NewLogger("flowtrack")
	svc, err := bootstrap.NewService(ctx, bootstrap.LoadConfig(), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer sentry.Flush(2 * time.Second)

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "exchange":
		err = runExchange(ctx, svc, args)
	case "refresh":
		err = runRefresh(ctx, svc, args)
	case "list":
		err = runList(ctx, svc, args)
	case "detail":
		err = runDetail(ctx, svc, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", cmd, err)
		return exitCode(err)
	}
	return 0
}

func runExchange(ctx context.Context, svc *bootstrap.Service, args []string) error {
	fs := flag.NewFlagSet("exchange", flag.ExitOnError)
	code := fs.String("code", "", "authorization code from the Strava redirect")
	redirect := fs.String("redirect-uri", svc.Config.RedirectURI, "redirect URI registered with Strava")
	fs.Parse(args)

	if *code == "" {
		return errors.New("-code is required")
	}
	tok, err := svc.Auth.Exchange(ctx, *code, *redirect)
	if err != nil {
		return err
	}
	return printJSON(tok)
}

func runRefresh(ctx context.Context, svc *bootstrap.Service, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	refreshToken := fs.String("refresh-token", os.Getenv("STRAVA_REFRESH_TOKEN"), "refresh token")
	fs.Parse(args)

	tok, err := svc.Auth.Refresh(ctx, *refreshToken)
	if err != nil {
		return err
	}
	return printJSON(tok)
}

func runList(ctx context.Context, svc *bootstrap.Service, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	token := fs.String("token", os.Getenv("STRAVA_ACCESS_TOKEN"), "Strava access token")
	typ := fs.String("type", "", "activity type, e.g. Run or Ride")
	from := fs.String("from", "", "first day, YYYY-MM-DD")
	to := fs.String("to", "", "last day, YYYY-MM-DD (inclusive)")
	minKm := fs.String("min-km", "", "minimum distance in km")
	text := fs.String("q", "", "case-insensitive name search")
	sortKey := fs.String("sort", "", "start_date_local_desc, start_date_local_asc, distance_desc or elapsed_time_desc")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 30, "activities per page")
	fs.Parse(args)

	if *token == "" {
		return errors.New("an access token is required (-token or STRAVA_ACCESS_TOKEN)")
	}

	q := svc.Engine.ParseQuery(map[string]string{
		"type":         *typ,
		"date_from":    *from,
		"date_to":      *to,
		"distance_min": *minKm,
		"q":            *text,
		"sort":         *sortKey,
		"page":         strconv.Itoa(*page),
		"per_page":     strconv.Itoa(*perPage),
	})
	result, err := svc.Engine.ListActivities(ctx, *token, q)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runDetail(ctx context.Context, svc *bootstrap.Service, args []string) error {
	fs := flag.NewFlagSet("detail", flag.ExitOnError)
	token := fs.String("token", os.Getenv("STRAVA_ACCESS_TOKEN"), "Strava access token")
	id := fs.String("id", "", "Strava activity id")
	csvOut := fs.Bool("csv", false, "print the stream table as CSV instead of JSON")
	fs.Parse(args)

	if *token == "" {
		return errors.New("an access token is required (-token or STRAVA_ACCESS_TOKEN)")
	}

	detail, err := svc.Engine.GetActivityDetail(ctx, *token, *id)
	if err != nil {
		return err
	}
	if *csvOut {
		if detail.Table == nil {
			return errors.New("activity has no streams")
		}
		return detail.Table.WriteCSV(os.Stdout)
	}
	return printJSON(detail)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitCode maps error kinds onto distinct exit statuses for scripting.
func exitCode(err error) int {
	var (
		authErr *oauth.AuthError
		upErr   *strava.UpstreamError
		badReq  *engine.BadRequestError
	)
	switch {
	case errors.As(err, &badReq):
		return 2
	case errors.As(err, &authErr):
		return 3
	case errors.As(err, &upErr):
		if upErr.StatusCode == 401 {
			return 3
		}
		return 4
	default:
		return 1
	}
}
