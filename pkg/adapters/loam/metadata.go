package loam

// TemplateMetadata is the front matter of a template document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type TemplateMetadata struct {
	Title    string   `json:"title,omitempty" mapstructure:"title"`
	Workflow string   `json:"workflow,omitempty" mapstructure:"workflow"`
	Tags     []string `json:"tags,omitempty" mapstructure:"tags"`
}
