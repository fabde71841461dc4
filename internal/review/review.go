package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/formatter"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"github.com/orgball2608/xhs-likes-manager/pkg/prompt"
	"go.uber.org/fx"
)

type Mode string

const (
	ModeAI    Mode = "ai"
	ModeOther Mode = "other"
	ModeAll   Mode = "all"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAI, ModeOther, ModeAll:
		return m, nil
	case "":
		return ModeAI, nil
	}
	return "", fmt.Errorf("unknown review mode %q (want ai, other or all)", s)
}

type Options struct {
	Mode Mode
	// Tag narrows the session to records carrying this tag.
	Tag string
}

type Result struct {
	Presented int
	Kept      int
	Removed   int
	Tagged    int
	Noted     int
	Skipped   int
	Remaining int
}

type state int

const (
	statePresenting state = iota
	stateAwaitingInput
	stateApplying
	stateAdvancing
	stateDone
)

type actionKind int

const (
	actKeep actionKind = iota
	actRemove
	actSkip
	actTag
	actNote
	actQuit
	actUnknown
)

type action struct {
	kind actionKind
	arg  string
}

const helpText = "Commands: [k]eep (or Enter) / [r]emove / [s]kip / [t]ag a,b / [n]ote text / [q]uit"

func parseAction(line string) action {
	line = strings.TrimSpace(line)
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "", "k", "keep":
		return action{kind: actKeep}
	case "r", "remove":
		return action{kind: actRemove}
	case "s", "skip":
		return action{kind: actSkip}
	case "q", "quit":
		return action{kind: actQuit}
	case "t", "tag":
		if arg != "" {
			return action{kind: actTag, arg: arg}
		}
	case "n", "note":
		if arg != "" {
			return action{kind: actNote, arg: arg}
		}
	}
	return action{kind: actUnknown}
}

func splitTags(arg string) []string {
	fields := strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == '，' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

type Opts struct {
	fx.In
	Config   *config.Config
	Logger   logger.Logger
	PostRepo post.Repository
}

type Reviewer struct {
	triggerTag string
	logger     logger.Logger
	postRepo   post.Repository
	now        func() time.Time
}

func New(opts Opts) *Reviewer {
	return &Reviewer{
		triggerTag: opts.Config.PaperExtraction.TriggerTag,
		logger:     opts.Logger.WithComponent("Review"),
		postRepo:   opts.PostRepo,
		now:        time.Now,
	}
}

// Queue returns the records a session with opts would present, in store order.
func (r *Reviewer) Queue(ctx context.Context, opts Options) ([]domain.PostRecord, error) {
	filter := domain.Filter{Statuses: []domain.Status{domain.StatusUntagged, domain.StatusTagged}}
	switch opts.Mode {
	case ModeAI, "":
		filter.Tag = r.triggerTag
	case ModeOther:
		filter.WithoutTag = r.triggerTag
	}

	records, err := r.postRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if opts.Tag == "" {
		return records, nil
	}
	out := records[:0]
	for _, rec := range records {
		if rec.HasTag(opts.Tag) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type session struct {
	r      *Reviewer
	ctx    context.Context
	in     *prompt.Reader
	out    io.Writer
	items  []domain.PostRecord
	pos    int
	action action
	result Result
}

// Run drives the review loop until the queue is exhausted, the user quits or
// the input ends. Every applied action is persisted before the next prompt.
func (r *Reviewer) Run(ctx context.Context, in io.Reader, out io.Writer, opts Options) (Result, error) {
	items, err := r.Queue(ctx, opts)
	if err != nil {
		return Result{}, err
	}

	if len(items) == 0 {
		fmt.Fprintln(out, "Nothing to review.")
		return Result{}, nil
	}
	s := &session{r: r, ctx: ctx, in: prompt.NewReader(in), out: out, items: items}
	defer s.in.Close()
	fmt.Fprintf(out, "Review session: %d posts\n%s\n\n", len(items), helpText)

	st := statePresenting
	for st != stateDone {
		if err := ctx.Err(); err != nil {
			s.result.Remaining = len(items) - s.pos
			return s.result, err
		}

		switch st {
		case statePresenting:
			st = s.present()
		case stateAwaitingInput:
			if st, err = s.await(); err != nil {
				s.result.Remaining = len(items) - s.pos
				fmt.Fprintln(out, "\nInterrupted; actions so far are saved.")
				return s.result, err
			}
		case stateApplying:
			if st, err = s.apply(); err != nil {
				s.result.Remaining = len(items) - s.pos
				return s.result, err
			}
		case stateAdvancing:
			s.pos++
			st = statePresenting
		}
	}

	s.result.Remaining = len(items) - s.pos
	res := s.result
	fmt.Fprintf(out, "\nKept %d, removed %d, skipped %d, tagged %d, noted %d. %d left.\n",
		res.Kept, res.Removed, res.Skipped, res.Tagged, res.Noted, res.Remaining)
	r.logger.Info("Review finished",
		"presented", res.Presented,
		"kept", res.Kept,
		"removed", res.Removed,
		"skipped", res.Skipped,
		"remaining", res.Remaining,
	)
	return res, nil
}

func (s *session) present() state {
	if s.pos >= len(s.items) {
		fmt.Fprintln(s.out, "All done.")
		return stateDone
	}
	rec := s.items[s.pos]
	s.result.Presented++

	fmt.Fprintf(s.out, "─── [%d/%d] ───\n", s.pos+1, len(s.items))
	fmt.Fprintf(s.out, "%s\n", rec.Title)
	fmt.Fprintf(s.out, "by %s | tags: %s\n", rec.Author, strings.Join(rec.Tags, ", "))
	if rec.Text != "" {
		fmt.Fprintf(s.out, "%s\n", formatter.Excerpt(rec.Text, 200))
	}
	if rec.Note != "" {
		fmt.Fprintf(s.out, "note: %s\n", rec.Note)
	}
	fmt.Fprintf(s.out, "%s\n\n", rec.URL)
	return stateAwaitingInput
}

// await waits for the next command. End of input ends the session like quit;
// a cancelled context abandons the prompt.
func (s *session) await() (state, error) {
	fmt.Fprint(s.out, ">>> ")
	line, err := s.in.ReadLine(s.ctx)
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(s.out)
		return stateDone, nil
	}
	if err != nil {
		return stateDone, err
	}
	s.action = parseAction(line)
	return stateApplying, nil
}

func (s *session) persist(rec domain.PostRecord) error {
	if err := s.r.postRepo.Upsert(s.ctx, rec); err != nil {
		return fmt.Errorf("store record %s: %w", rec.ID, err)
	}
	if err := s.r.postRepo.Save(s.ctx); err != nil {
		return fmt.Errorf("save record store: %w", err)
	}
	s.items[s.pos] = rec
	return nil
}

func (s *session) apply() (state, error) {
	rec := s.items[s.pos].Clone()

	switch s.action.kind {
	case actKeep:
		rec.MarkReviewed()
		if err := s.persist(rec); err != nil {
			return stateDone, err
		}
		s.result.Kept++
		fmt.Fprintln(s.out, "  kept")
		return stateAdvancing, nil

	case actRemove:
		rec.MarkRemoved(s.r.now().UTC())
		if err := s.persist(rec); err != nil {
			return stateDone, err
		}
		s.result.Removed++
		fmt.Fprintln(s.out, "  marked for removal")
		return stateAdvancing, nil

	case actSkip:
		s.result.Skipped++
		fmt.Fprintln(s.out, "  skipped")
		return stateAdvancing, nil

	case actTag:
		if rec.AddTags(splitTags(s.action.arg)...) {
			if rec.Status == domain.StatusUntagged {
				rec.Status = domain.StatusTagged
			}
			if err := s.persist(rec); err != nil {
				return stateDone, err
			}
			s.result.Tagged++
		}
		fmt.Fprintf(s.out, "  tags: %s\n", strings.Join(rec.Tags, ", "))
		return stateAwaitingInput, nil

	case actNote:
		rec.Note = s.action.arg
		if err := s.persist(rec); err != nil {
			return stateDone, err
		}
		s.result.Noted++
		fmt.Fprintln(s.out, "  note saved")
		return stateAwaitingInput, nil

	case actQuit:
		return stateDone, nil
	}

	fmt.Fprintf(s.out, "  unknown command. %s\n", helpText)
	return stateAwaitingInput, nil
}
