package store

import "time"

// LatestSlug is the slug of the version tracking the default branch.
const LatestSlug = "latest"

// VersionType distinguishes branch-tracking versions from tag versions.
type VersionType string

const (
	VersionBranch VersionType = "branch"
	VersionTag    VersionType = "tag"
)

// BuildState is the lifecycle stage of a build.
type BuildState string

const (
	StateTriggered BuildState = "triggered"
	StateCloning   BuildState = "cloning"
	StateBuilding  BuildState = "building"
	StateFinished  BuildState = "finished"
)

// BuildTypeHTML is the build type recorded for triggered builds.
const BuildTypeHTML = "html"

// Project is a documentation project rooted in one repository.
type Project struct {
	ID                int64
	Slug              string
	Name              string
	Repo              string
	RepoType          string
	DefaultBranch     string
	DocumentationType string
	ConfPath          string
	Skip              bool
}

// Version is one buildable reference of a project.
type Version struct {
	ID          int64
	ProjectID   int64
	Slug        string
	Identifier  string
	VerboseName string
	Type        VersionType
	Active      bool
	Built       bool
}

// Build records one build attempt.
type Build struct {
	ID        int64
	ProjectID int64
	VersionID int64
	Type      string
	State     BuildState
	Success   bool
	Commit    string
	ExitCode  int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BuildCommand is one command executed during a build.
type BuildCommand struct {
	ID        int64
	BuildID   int64
	Command   string
	Dir       string
	Output    string
	Error     string
	ExitCode  int
	StartTime time.Time
	EndTime   time.Time
}
