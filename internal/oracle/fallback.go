package oracle

import (
	_ "embed"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

//go:embed templates/fallback.yaml
var fallbackYAML []byte

type fallbackSet struct {
	Variants []model.CopyVariant `yaml:"variants"`
	ICPs     []ICP               `yaml:"icps"`
}

var loadFallbacks = sync.OnceValue(func() fallbackSet {
	var fs fallbackSet
	if err := yaml.Unmarshal(fallbackYAML, &fs); err != nil {
		panic("oracle: embedded fallback.yaml: " + err.Error())
	}
	return fs
})

// FallbackCopy returns the template variants for url and audience.
func FallbackCopy(url, audience string) []model.CopyVariant {
	r := strings.NewReplacer("${url}", url, "${audience}", audience)
	src := loadFallbacks().Variants
	out := make([]model.CopyVariant, len(src))
	for i, v := range src {
		out[i] = model.CopyVariant{
			Subject: r.Replace(v.Subject),
			Body:    strings.TrimSpace(r.Replace(v.Body)),
		}
	}
	return out
}

// FallbackICPs returns the generic ICP set.
func FallbackICPs() []ICP {
	src := loadFallbacks().ICPs
	out := make([]ICP, len(src))
	for i, icp := range src {
		icp.PainPoints = append([]string(nil), icp.PainPoints...)
		out[i] = icp
	}
	return out
}
