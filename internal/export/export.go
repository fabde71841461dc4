package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/template"
	"time"

	"github.com/orgball2608/xhs-likes-manager/internal/domain"
	"github.com/orgball2608/xhs-likes-manager/internal/repositories/post"
	"github.com/orgball2608/xhs-likes-manager/pkg/config"
	"github.com/orgball2608/xhs-likes-manager/pkg/formatter"
	"github.com/orgball2608/xhs-likes-manager/pkg/logger"
	"go.uber.org/fx"
)

const untaggedSection = "未分类"

var titles = map[domain.Kind]string{
	domain.KindLike:     "小红书点赞",
	domain.KindBookmark: "小红书收藏",
}

// displayZone is the site's home timezone; export timestamps are shown in it.
var displayZone = time.FixedZone("CST", 8*60*60)

var markdown = template.Must(template.New("export").Funcs(template.FuncMap{
	"excerpt": func(s string) string { return formatter.Excerpt(s, 100) },
	"author": func(s string) string {
		if s == "" {
			return "未知"
		}
		return s
	},
}).Parse(`# {{.Title}}

最后更新: {{.Updated}}
总计: {{.Total}} 条
{{range .Sections}}
## {{.Name}}
{{range .Items}}
- **[{{.Title}}]({{.URL}})** — {{author .Author}}{{if eq .Status "reviewed"}} ✅{{end}}
{{- if .Text}}
  > {{excerpt .Text}}
{{- end}}
{{- if .Note}}
  📝 {{.Note}}
{{- end}}
{{end}}{{end}}`))

type section struct {
	Name  string
	Items []domain.PostRecord
}

type document struct {
	Title    string
	Updated  string
	Total    int
	Sections []section
}

// group puts a record under every tag it carries, tags sorted by name, and
// collects the untagged ones in a trailing section.
func group(records []domain.PostRecord) []section {
	byTag := make(map[string][]domain.PostRecord)
	var untagged []domain.PostRecord
	for _, rec := range records {
		if len(rec.Tags) == 0 {
			untagged = append(untagged, rec)
			continue
		}
		for _, t := range rec.Tags {
			byTag[t] = append(byTag[t], rec)
		}
	}

	names := make([]string, 0, len(byTag))
	for name := range byTag {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make([]section, 0, len(names)+1)
	for _, name := range names {
		sections = append(sections, section{Name: name, Items: byTag[name]})
	}
	if len(untagged) > 0 {
		sections = append(sections, section{Name: untaggedSection, Items: untagged})
	}
	return sections
}

// Render writes the markdown view of one collection.
func Render(w io.Writer, kind domain.Kind, lastFetch time.Time, records []domain.PostRecord) error {
	doc := document{
		Title:    titles[kind],
		Updated:  formatter.Timestamp(lastFetch, displayZone, "N/A"),
		Total:    len(records),
		Sections: group(records),
	}
	return markdown.Execute(w, doc)
}

type Opts struct {
	fx.In
	Config   *config.Config
	Logger   logger.Logger
	PostRepo post.Repository
}

type Exporter struct {
	config   *config.Config
	logger   logger.Logger
	postRepo post.Repository
}

func New(opts Opts) *Exporter {
	return &Exporter{
		config:   opts.Config,
		logger:   opts.Logger.WithComponent("Export"),
		postRepo: opts.PostRepo,
	}
}

// Run rewrites the markdown file of every collection and returns their paths.
// Removed records are left out.
func (e *Exporter) Run(ctx context.Context) ([]string, error) {
	var paths []string
	for _, kind := range []domain.Kind{domain.KindLike, domain.KindBookmark} {
		path, err := e.Collection(ctx, kind)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (e *Exporter) Collection(ctx context.Context, kind domain.Kind) (string, error) {
	records, err := e.postRepo.List(ctx, domain.Filter{Kind: kind})
	if err != nil {
		return "", fmt.Errorf("list %s: %w", kind.Collection(), err)
	}
	lastFetch, err := e.postRepo.LastFetch(ctx, kind)
	if err != nil {
		return "", fmt.Errorf("read last fetch for %s: %w", kind.Collection(), err)
	}

	var buf bytes.Buffer
	if err := Render(&buf, kind, lastFetch, records); err != nil {
		return "", fmt.Errorf("render %s: %w", kind.Collection(), err)
	}

	path := e.config.ExportPath(kind.Collection())
	if err := writeFile(path, buf.Bytes()); err != nil {
		return "", err
	}
	e.logger.Info("Exported markdown", "collection", kind.Collection(), "records", len(records), "path", path)
	return path, nil
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp export file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace export: %w", err)
	}
	return nil
}
