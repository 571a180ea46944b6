package report

import "time"

// Bundle is the complete outcome of one reconciliation run.
type Bundle struct {
	RunID       string              `yaml:"run_id" json:"run_id"`
	GeneratedAt time.Time           `yaml:"generated_at" json:"generated_at"`
	Summary     Summary             `yaml:"summary" json:"summary"`
	Matched     []MatchedRepository `yaml:"matched" json:"matched"`
	ScannerOnly []TargetEntry       `yaml:"scanner_only" json:"scanner_only"`
	HostOnly    []RepositoryEntry   `yaml:"host_only" json:"host_only"`
	Unmappable  []TargetEntry       `yaml:"unmappable" json:"unmappable"`
	Validations []FileRecord        `yaml:"validations" json:"validations"`
	Duplicates  []DuplicateRecord   `yaml:"duplicates" json:"duplicates"`
	Errors      []ErrorEntry        `yaml:"errors" json:"errors"`
}

// Summary counts every partition of the run.
type Summary struct {
	MatchedRepositories int `yaml:"matched_repositories" json:"matched_repositories"`
	MatchedPairs        int `yaml:"matched_pairs" json:"matched_pairs"`
	ScannerOnly         int `yaml:"scanner_only" json:"scanner_only"`
	HostOnly            int `yaml:"host_only" json:"host_only"`
	Unmappable          int `yaml:"unmappable" json:"unmappable"`
	TrackedPresent      int `yaml:"tracked_present" json:"tracked_present"`
	TrackedMissing      int `yaml:"tracked_missing" json:"tracked_missing"`
	TrackedUnverified   int `yaml:"tracked_unverified" json:"tracked_unverified"`
	UntrackedSupported  int `yaml:"untracked_supported" json:"untracked_supported"`
	DuplicateGroups     int `yaml:"duplicate_groups" json:"duplicate_groups"`
	ProjectsToRemove    int `yaml:"projects_to_remove" json:"projects_to_remove"`
	Errors              int `yaml:"errors" json:"errors"`
}

// RepositoryEntry describes one host repository.
type RepositoryEntry struct {
	Key           string `yaml:"key" json:"key"`
	Path          string `yaml:"path" json:"path"`
	WebURL        string `yaml:"web_url" json:"web_url"`
	DefaultBranch string `yaml:"default_branch" json:"default_branch"`
}

// TargetEntry describes one scanner target.
type TargetEntry struct {
	TargetID      string `yaml:"target_id" json:"target_id"`
	OrgID         string `yaml:"org_id" json:"org_id"`
	OrgName       string `yaml:"org_name,omitempty" json:"org_name,omitempty"`
	DisplayName   string `yaml:"display_name" json:"display_name"`
	SourceType    string `yaml:"source_type" json:"source_type"`
	URL           string `yaml:"url" json:"url"`
	RepositoryKey string `yaml:"repository_key,omitempty" json:"repository_key,omitempty"`
	ProjectCount  int    `yaml:"project_count" json:"project_count"`
	ParseFailure  string `yaml:"parse_failure,omitempty" json:"parse_failure,omitempty"`
	ProjectsError string `yaml:"projects_error,omitempty" json:"projects_error,omitempty"`
}

// MatchedRepository aggregates the validation of every target joined to one repository.
type MatchedRepository struct {
	Repository         RepositoryEntry `yaml:"repository" json:"repository"`
	Targets            []TargetEntry   `yaml:"targets" json:"targets"`
	Tracked            []FileRecord    `yaml:"tracked" json:"tracked"`
	Stale              []FileRecord    `yaml:"stale" json:"stale"`
	Unverified         []FileRecord    `yaml:"unverified" json:"unverified"`
	SupportedFiles     int             `yaml:"supported_files" json:"supported_files"`
	UntrackedSupported []string        `yaml:"untracked_supported" json:"untracked_supported"`
	TreeError          string          `yaml:"tree_error,omitempty" json:"tree_error,omitempty"`
}

// FileRecord is the existence check of one tracked file.
type FileRecord struct {
	RepositoryKey string    `yaml:"repository_key" json:"repository_key"`
	TargetID      string    `yaml:"target_id" json:"target_id"`
	OrgID         string    `yaml:"org_id" json:"org_id"`
	OrgName       string    `yaml:"org_name,omitempty" json:"org_name,omitempty"`
	ProjectID     string    `yaml:"project_id" json:"project_id"`
	ProjectName   string    `yaml:"project_name" json:"project_name"`
	ProjectURL    string    `yaml:"project_url" json:"project_url"`
	Root          string    `yaml:"root,omitempty" json:"root,omitempty"`
	FilePath      string    `yaml:"file_path" json:"file_path"`
	Exists        bool      `yaml:"exists" json:"exists"`
	Status        string    `yaml:"status" json:"status"`
	Error         string    `yaml:"error,omitempty" json:"error,omitempty"`
	CheckedAt     time.Time `yaml:"checked_at" json:"checked_at"`
}

// ProjectReference identifies one scanner project in a duplicate decision.
type ProjectReference struct {
	ID      string    `yaml:"id" json:"id"`
	Name    string    `yaml:"name" json:"name"`
	Type    string    `yaml:"type" json:"type"`
	Created time.Time `yaml:"created" json:"created"`
	URL     string    `yaml:"url" json:"url"`
}

// ManifestRecord is one pom.xml inspected by the artifact check.
type ManifestRecord struct {
	Path       string `yaml:"path" json:"path"`
	GroupID    string `yaml:"group_id,omitempty" json:"group_id,omitempty"`
	ArtifactID string `yaml:"artifact_id,omitempty" json:"artifact_id,omitempty"`
	Status     string `yaml:"status" json:"status"`
	Error      string `yaml:"error,omitempty" json:"error,omitempty"`
}

// ArtifactRecord is the artifact identity evidence of a Maven duplicate decision.
type ArtifactRecord struct {
	Expected   string           `yaml:"expected" json:"expected"`
	SearchRoot string           `yaml:"search_root" json:"search_root"`
	Status     string           `yaml:"status" json:"status"`
	Manifests  []ManifestRecord `yaml:"manifests" json:"manifests"`
	Error      string           `yaml:"error,omitempty" json:"error,omitempty"`
}

// DuplicateRecord is one resolved duplicate group.
type DuplicateRecord struct {
	OrgID            string             `yaml:"org_id" json:"org_id"`
	OrgName          string             `yaml:"org_name,omitempty" json:"org_name,omitempty"`
	TargetID         string             `yaml:"target_id" json:"target_id"`
	TargetName       string             `yaml:"target_name" json:"target_name"`
	UniqueIdentifier string             `yaml:"unique_identifier" json:"unique_identifier"`
	Keep             ProjectReference   `yaml:"keep" json:"keep"`
	Remove           []ProjectReference `yaml:"remove" json:"remove"`
	Reason           string             `yaml:"reason" json:"reason"`
	Artifact         *ArtifactRecord    `yaml:"artifact,omitempty" json:"artifact,omitempty"`
}

// ErrorScope names what an ErrorEntry could not process.
type ErrorScope string

// Error scopes.
const (
	ErrorScopeOrganization ErrorScope = "organization"
	ErrorScopeTarget       ErrorScope = "target"
	ErrorScopeRepository   ErrorScope = "repository"
	ErrorScopeFile         ErrorScope = "file"
	ErrorScopeTree         ErrorScope = "tree"
	ErrorScopeManifest     ErrorScope = "manifest"
)

// ErrorKind classifies the cause of an ErrorEntry.
type ErrorKind string

// Error kinds.
const (
	ErrorKindAccessDenied ErrorKind = "access_denied"
	ErrorKindTransient    ErrorKind = "transient"
	ErrorKindUnexpected   ErrorKind = "unexpected"
)

// ErrorEntry records something the run could not check. It never means "confirmed missing".
type ErrorEntry struct {
	Scope   ErrorScope `yaml:"scope" json:"scope"`
	Kind    ErrorKind  `yaml:"kind" json:"kind"`
	Subject string     `yaml:"subject" json:"subject"`
	Message string     `yaml:"message" json:"message"`
}
