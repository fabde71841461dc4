package config

import (
	"time"
)

// Config is the root configuration, read from config.yaml and the environment.
type Config struct {
	App struct {
		Env string `yaml:"env" env:"APP_ENV" env-default:"development"`
	} `yaml:"app"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	} `yaml:"log"`
	Sentry struct {
		DSN string `yaml:"dsn" env:"SENTRY_DSN"`
	} `yaml:"sentry"`

	UserID            string `yaml:"user_id" env:"XHS_USER_ID"`
	DataDir           string `yaml:"data_dir" env:"XHS_DATA_DIR" env-default:"./data"`
	BrowserProfileDir string `yaml:"browser_profile_dir" env:"XHS_BROWSER_PROFILE_DIR" env-default:"./data/browser_profile"`
	BaseURL           string `yaml:"base_url" env:"XHS_BASE_URL" env-default:"https://www.xiaohongshu.com"`

	Browser         BrowserConfig         `yaml:"browser"`
	Fetch           FetchConfig           `yaml:"fetch"`
	TagRules        []TagRule             `yaml:"tag_rules"`
	Tagging         TaggingConfig         `yaml:"tagging"`
	PaperExtraction PaperExtractionConfig `yaml:"paper_extraction"`
	Storage         StorageConfig         `yaml:"storage"`
	Export          ExportConfig          `yaml:"export"`
	Telegram        TelegramConfig        `yaml:"telegram"`
	Schedule        ScheduleConfig        `yaml:"schedule"`

	// baseDir anchors relative paths; it is the config file directory.
	baseDir string
}

type BrowserConfig struct {
	Headless          bool          `yaml:"headless" env:"BROWSER_HEADLESS" env-default:"false"`
	ViewportWidth     int           `yaml:"viewport_width" env:"BROWSER_VIEWPORT_WIDTH" env-default:"1280"`
	ViewportHeight    int           `yaml:"viewport_height" env:"BROWSER_VIEWPORT_HEIGHT" env-default:"900"`
	Locale            string        `yaml:"locale" env:"BROWSER_LOCALE" env-default:"zh-CN"`
	UserAgent         string        `yaml:"user_agent" env:"BROWSER_USER_AGENT" env-default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" env:"BROWSER_NAVIGATION_TIMEOUT" env-default:"60s"`
	NavigationRetries uint64        `yaml:"navigation_retries" env:"BROWSER_NAVIGATION_RETRIES" env-default:"3"`
	SettleWait        time.Duration `yaml:"settle_wait" env:"BROWSER_SETTLE_WAIT" env-default:"3s"`
	NoteGap           time.Duration `yaml:"note_gap" env:"BROWSER_NOTE_GAP" env-default:"5s" env-description:"minimum time between opening two note pages"`
	UnlikeSelectors   []string      `yaml:"unlike_selectors" env:"BROWSER_UNLIKE_SELECTORS" env-default:"[class*=\"like\"][class*=\"active\"]|.like-wrapper.active|.like-active|button[class*=\"like\"].active" env-separator:"|"`
}

type FetchConfig struct {
	MaxScrollsLikes     int           `yaml:"max_scrolls_likes" env:"FETCH_MAX_SCROLLS_LIKES" env-default:"50"`
	MaxScrollsBookmarks int           `yaml:"max_scrolls_bookmarks" env:"FETCH_MAX_SCROLLS_BOOKMARKS" env-default:"30"`
	ScrollWait          time.Duration `yaml:"scroll_wait" env:"FETCH_SCROLL_WAIT" env-default:"2s"`
	NoChangeThreshold   int           `yaml:"no_change_threshold" env:"FETCH_NO_CHANGE_THRESHOLD" env-default:"3"`
}

// TagRule is a named keyword set matched against post text.
type TagRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type TaggingConfig struct {
	// Mode is "all" (every matching rule) or "first" (first matching rule only).
	Mode        string `yaml:"mode" env:"TAGGING_MODE" env-default:"all"`
	FallbackTag string `yaml:"fallback_tag" env:"TAGGING_FALLBACK_TAG" env-default:"其他"`
}

type PaperExtractionConfig struct {
	TriggerTag       string        `yaml:"trigger_tag" env:"PAPERS_TRIGGER_TAG" env-default:"AI/LLM"`
	APIURL           string        `yaml:"api_url" env:"PAPERS_API_URL" env-default:"http://export.arxiv.org/api/query"`
	MinRequestDelay  time.Duration `yaml:"min_request_delay" env:"PAPERS_MIN_REQUEST_DELAY" env-default:"1s"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"PAPERS_REQUEST_TIMEOUT" env-default:"15s"`
	ArxivMaxResults  int           `yaml:"arxiv_max_results" env:"PAPERS_ARXIV_MAX_RESULTS" env-default:"3"`
	MaxTitleLookups  int           `yaml:"max_title_lookups" env:"PAPERS_MAX_TITLE_LOOKUPS" env-default:"2"`
	ContentSelectors []string      `yaml:"content_selectors" env:"PAPERS_CONTENT_SELECTORS" env-default:"#detail-desc,.note-text" env-separator:","`
	PageLoadWait     time.Duration `yaml:"page_load_wait" env:"PAPERS_PAGE_LOAD_WAIT" env-default:"4s"`
}

type StorageConfig struct {
	// Driver is one of "json", "sqlite" or "postgres".
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"json"`
	// Path is the record file (json) or database file (sqlite), relative to data_dir.
	Path string `yaml:"path" env:"STORAGE_PATH"`
	DSN  string `yaml:"dsn" env:"STORAGE_DSN"`
}

type ExportConfig struct {
	// Disabled turns off the markdown refresh after fetch and tag.
	Disabled bool `yaml:"disabled" env:"EXPORT_DISABLED"`
}

type TelegramConfig struct {
	Token  string `yaml:"token" env:"TELEGRAM_TOKEN"`
	ChatID int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

type ScheduleConfig struct {
	Cron     string `yaml:"cron" env:"SCHEDULE_CRON" env-default:"0 */6 * * *"`
	Timezone string `yaml:"timezone" env:"SCHEDULE_TIMEZONE" env-default:"Asia/Shanghai"`
}

// DefaultTagRules mirrors the keyword sets the tool ships with.
func DefaultTagRules() []TagRule {
	return []TagRule{
		{Name: "AI/LLM", Keywords: []string{
			"llm", "大模型", "gpt", "transformer", "预训练", "fine-tun", "微调",
			"强化学习", "reinforcement", "rl ", "rlhf", "grpo", "reasoning",
			"推理", "思维链", "chain-of-thought", "cot", "agent", "tool use",
			"论文", "paper", "arxiv", "distill", "蒸馏", "alignment", "对齐",
			"多模态", "multimodal", "embedding", "token", "attention",
			"deepseek", "qwen", "claude", "openai", "anthropic", "模型",
			"神经网络", "训练", "scaling", "benchmark", "nlp", "self-evolving",
			"reward", "prompt", "inference", "tta", "test-time", "agentic",
			"context engineering", "survey",
		}},
		{Name: "编程", Keywords: []string{
			"leetcode", "算法", "题单", "coding", "编程", "python", "代码",
			"开源", "github", "debug", "工程", "api", "框架", "cuda",
		}},
		{Name: "学术/PhD", Keywords: []string{
			"phd", "博士", "科研", "学术", "导师", "读博", "研究生",
			"人才计划", "icml", "neurips", "iclr",
		}},
		{Name: "美食", Keywords: []string{
			"美食", "餐厅", "好吃", "做饭", "菜谱", "咖啡", "日料",
			"火锅", "甜品", "一人食",
		}},
		{Name: "旅行", Keywords: []string{
			"旅行", "旅游", "攻略", "景点", "滑雪", "崇礼", "酒店",
			"雪场", "雪道",
		}},
		{Name: "体育", Keywords: []string{
			"球员", "比赛", "冬奥", "奥运", "短道", "足球", "篮球",
			"滑冰", "运动", "冰舞",
		}},
		{Name: "小说/书评", Keywords: []string{
			"小说", "书评", "女主", "男主", "jj", "晋江", "耽美",
			"推荐文", "书单", "章小蕙",
		}},
		{Name: "生活", Keywords: []string{
			"租房", "搬家", "理财", "省钱", "穿搭", "护肤", "健身",
			"攒钱", "正骨",
		}},
	}
}

// NoFallbackTag disables the fallback tag; an empty value would be replaced by the default.
const NoFallbackTag = "-"

// Fallback returns the tag applied to records no rule matched, or "" when disabled.
func (t TaggingConfig) Fallback() string {
	if t.FallbackTag == NoFallbackTag {
		return ""
	}
	return t.FallbackTag
}
