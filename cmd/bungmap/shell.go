package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FACorreiaa/bungmap/internal/app"
	"github.com/FACorreiaa/bungmap/internal/domain/mapview"
	"github.com/FACorreiaa/bungmap/internal/types"
)

var errQuit = errors.New("quit")

// Shell maps text commands onto client actions and widget events.
type Shell struct {
	app    *app.App
	widget *mapview.Recorder
	out    io.Writer
}

func NewShell(client *app.App, widget *mapview.Recorder, out io.Writer) *Shell {
	return &Shell{app: client, widget: widget, out: out}
}

// Run executes commands until EOF, "quit" or ctx ends. Command failures are
// printed and do not stop the shell.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := s.Exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// Exec runs a single command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(line, cmd))

	switch cmd {
	case "help":
		s.help()
	case "quit", "exit":
		return errQuit
	case "state":
		fmt.Fprintln(s.out, s.app.State())
		if s.app.PermissionDenied() {
			fmt.Fprintln(s.out, "banner: 데이터를 불러올 권한이 없습니다")
		}
	case "whoami":
		identity := s.app.Identity()
		if identity == nil {
			fmt.Fprintln(s.out, "signed out")
			return nil
		}
		fmt.Fprintf(s.out, "%s <%s> admin=%t\n", identity.DisplayName, identity.Email, identity.IsAdmin)
	case "signin", "signup":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s <email> <password>", cmd)
		}
		_, err := s.app.SignIn(ctx, types.Credentials{Email: args[0], Password: args[1], SignUp: cmd == "signup"})
		return err
	case "signout":
		return s.app.SignOut(ctx)
	case "reload":
		return s.app.Reload(ctx)
	case "places":
		s.printPlaces()
	case "select":
		if len(args) != 1 {
			return errors.New("usage: select <place-id>")
		}
		err := s.app.SelectPlace(args[0])
		s.app.Wait()
		return err
	case "marker":
		if rest == "" {
			return errors.New("usage: marker <title>")
		}
		if !s.widget.ClickMarker(rest) {
			return fmt.Errorf("no marker titled %q", rest)
		}
		s.app.Wait()
	case "clear":
		return s.app.ClearSelection()
	case "add":
		return s.app.StartAdd(ctx)
	case "click", "drag":
		c, err := parseCoordinate(args)
		if err != nil {
			return err
		}
		if cmd == "click" {
			s.widget.Click(c)
		} else {
			s.widget.Drag(c)
		}
	case "submit":
		return s.submit(ctx, args)
	case "cancel":
		s.app.CancelPlacement()
	case "move":
		return s.app.StartEditLocation(ctx)
	case "confirm":
		return s.app.ConfirmEditLocation(ctx)
	case "rename":
		return s.rename(ctx, args)
	case "delete":
		if len(args) != 1 {
			return errors.New("usage: delete <place-id>")
		}
		return s.app.DeletePlace(ctx, args[0])
	case "reviews":
		s.printReviews()
	case "review":
		return s.review(ctx, args)
	case "unreview":
		if len(args) != 1 {
			return errors.New("usage: unreview <review-id>")
		}
		return s.app.DeleteReview(ctx, args[0])
	case "locate":
		c, err := s.app.LocateMe(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "you are at %.6f,%.6f\n", c.Lat, c.Lng)
	case "seed":
		created, err := s.app.SeedSamples(ctx)
		fmt.Fprintf(s.out, "seeded %d places\n", len(created))
		return err
	case "markers":
		for _, m := range s.widget.Markers() {
			fmt.Fprintf(s.out, "%-9s %-20s %.6f,%.6f\n", m.Spec.Style, m.Spec.Title, m.Spec.Position.Lat, m.Spec.Position.Lng)
		}
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

// submit: submit <category|-> <name...>
func (s *Shell) submit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: submit <category|-> <name>")
	}
	draft := types.PlaceDraft{Name: strings.Join(args[1:], " ")}
	if args[0] != "-" {
		category, err := types.ParseCategory(args[0])
		if err != nil {
			return err
		}
		draft.Category = category
	}
	place, accepted, err := s.app.SubmitNewPlace(ctx, draft)
	if err != nil {
		return err
	}
	if !accepted {
		fmt.Fprintln(s.out, "pick a location first (click)")
		return nil
	}
	s.app.Wait()
	fmt.Fprintf(s.out, "created %s %q (%s)\n", place.ID, place.Name, place.Category.Label())
	return nil
}

func (s *Shell) rename(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: rename <place-id> <name>")
	}
	name := strings.Join(args[1:], " ")
	_, err := s.app.UpdatePlace(ctx, args[0], types.PlacePatch{Name: &name})
	return err
}

// review: review <rating> <comment...>
func (s *Shell) review(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: review <rating> [comment]")
	}
	rating, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("rating: %w", err)
	}
	selected, ok := s.app.Selected()
	if !ok {
		return errors.New("select a place first")
	}
	r, err := s.app.AddReview(ctx, types.ReviewDraft{
		PlaceID: selected.ID,
		Rating:  rating,
		Comment: strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "reviewed %s as %s\n", r.ID, r.Nickname)
	return nil
}

func (s *Shell) printPlaces() {
	list := s.app.Places()
	if len(list) == 0 {
		fmt.Fprintln(s.out, "no places")
		return
	}
	for _, p := range list {
		fmt.Fprintf(s.out, "%s  %-20s %-8s %.6f,%.6f\n", p.ID, p.Name, p.Category.Label(), p.Location.Lat, p.Location.Lng)
	}
}

func (s *Shell) printReviews() {
	if _, ok := s.app.Selected(); !ok {
		fmt.Fprintln(s.out, "no place selected")
		return
	}
	summary := s.app.ReviewSummary()
	fmt.Fprintf(s.out, "%d reviews, average %.1f\n", summary.Count, summary.Average)
	for _, r := range s.app.Reviews() {
		fmt.Fprintf(s.out, "%s  %d★ %s: %s\n", r.ID, r.Rating, r.Nickname, r.Comment)
	}
}

func (s *Shell) help() {
	fmt.Fprint(s.out, `commands:
  signin|signup <email> <password>, signout, whoami, state, reload
  places, markers, select <id>, marker <title>, clear
  add, click <lat> <lng>, submit <category|-> <name>, cancel
  move, drag <lat> <lng>, confirm, rename <id> <name>, delete <id>
  reviews, review <rating> [comment], unreview <id>
  locate, seed, quit
`)
}

func parseCoordinate(args []string) (types.Coordinate, error) {
	if len(args) != 2 {
		return types.Coordinate{}, errors.New("expected <lat> <lng>")
	}
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("lat: %w", err)
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("lng: %w", err)
	}
	c := types.Coordinate{Lat: lat, Lng: lng}
	return c, c.Validate()
}
