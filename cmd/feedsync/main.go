package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"feedsync/config"
	"feedsync/internal/app"
	"feedsync/internal/apperr"
	"feedsync/internal/feed"
	"feedsync/internal/models"
	"feedsync/internal/utils"

	"go.uber.org/zap"
)

const usage = `usage: feedsync <command> [flags]

commands:
  register -name NAME [-avatar FILE]   create an account on this device
  whoami                               show the signed-in identity
  feed [-author ID] [-pages N]         print the feed, newest first
  profile ID                           show an identity
  follow ID                            follow or unfollow ID
  post -media FILE [-text T] [-lat X -lng Y]
  edit -name NAME [-bio B] [-birth YYYY-MM-DD] [-avatar FILE]
  clear                                drop cached records
  logout                               forget the session and cache
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := utils.InitLogger(cfg.AppEnv)
	defer logger.Sync()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := run(ctx, a, os.Args[1], os.Args[2:]); err != nil {
		zap.L().Debug("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		fmt.Fprintln(os.Stderr, failure(os.Args[1], err))
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)

	if cmd != "register" && !a.Session().Valid() {
		return errors.New("not registered on this device, run: feedsync register -name NAME")
	}

	switch cmd {
	case "register":
		name := fs.String("name", "", "display name")
		avatar := fs.String("avatar", "", "picture file")
		fs.Parse(args)
		if *name == "" {
			return errors.New("-name is required")
		}
		pic, err := readBase64(*avatar)
		if err != nil {
			return err
		}
		sess, err := a.Register(ctx, *name, pic)
		if err != nil {
			return err
		}
		return printJSON(map[string]int64{"identityId": sess.IdentityID})

	case "whoami":
		u, err := a.Repo.Identity(ctx, a.Session().IdentityID)
		if err != nil {
			return err
		}
		return printJSON(u)

	case "feed":
		author := fs.Int64("author", 0, "list one author's posts instead of the feed")
		pages := fs.Int("pages", 1, "pages to load")
		fs.Parse(args)

		var agg *feed.Aggregator
		if *author != 0 {
			agg = a.NewAuthorFeed(*author)
		} else {
			agg = a.NewGlobalFeed()
		}
		defer a.ReleaseFeed(agg)

		var snap feed.Snapshot
		for i := 0; i < *pages && agg.HasMore(); i++ {
			s, err := agg.LoadMore(ctx)
			if err != nil {
				return fmt.Errorf("feed load failed: %w", err)
			}
			snap = s
		}
		return printJSON(snap.Items)

	case "profile":
		id, err := idArg(fs, args)
		if err != nil {
			return err
		}
		u, err := a.Repo.Identity(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(u)

	case "follow":
		id, err := idArg(fs, args)
		if err != nil {
			return err
		}
		u, err := a.Social.ToggleFollow(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(u)

	case "post":
		media := fs.String("media", "", "picture file")
		text := fs.String("text", "", "caption")
		lat := fs.Float64("lat", 0, "latitude")
		lng := fs.Float64("lng", 0, "longitude")
		fs.Parse(args)

		pic, err := readBase64(*media)
		if err != nil {
			return err
		}
		d := models.Draft{Media: pic}
		if *text != "" {
			d.Text = text
		}
		if *lat != 0 || *lng != 0 {
			d.Location = &models.Location{Latitude: *lat, Longitude: *lng}
		}
		c, err := a.Repo.CreateContent(ctx, a.Session().IdentityID, d)
		if err != nil {
			return err
		}
		return printJSON(c)

	case "edit":
		name := fs.String("name", "", "display name")
		bio := fs.String("bio", "", "bio")
		birth := fs.String("birth", "", "birth date, YYYY-MM-DD")
		avatar := fs.String("avatar", "", "picture file")
		fs.Parse(args)

		upd := models.ProfileUpdate{DisplayName: *name, Bio: *bio, BirthDate: *birth}
		if *avatar != "" {
			pic, err := readBase64(*avatar)
			if err != nil {
				return err
			}
			upd.Avatar = &pic
		}
		u, err := a.Repo.UpdateProfile(ctx, upd)
		if err != nil {
			return err
		}
		return printJSON(u)

	case "clear":
		return a.Repo.ClearCache(ctx)

	case "logout":
		return a.SignOut(ctx)
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

// failure formats err for the terminal, suggesting a retry when running the
// same command again can succeed.
func failure(cmd string, err error) string {
	msg := cmd + ": " + err.Error()
	if apperr.Retryable(err) {
		msg += " (try again later)"
	}
	return msg
}

func idArg(fs *flag.FlagSet, args []string) (int64, error) {
	fs.Parse(args)
	if fs.NArg() != 1 {
		return 0, errors.New("expected one identity id")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad id %q", fs.Arg(0))
	}
	return id, nil
}

func readBase64(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
