package cfg

type Cfg struct {
	// Storage
	DataFile string
	DBPath   string

	// Sources and rules
	SourcesDir string
	RulesFile  string

	// Application configuration
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	RunTimeout        int
	APIAccessKey      string
	FeedItems         int
	Once              bool

	// Notification
	TelegramToken  string
	TelegramChatID string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
