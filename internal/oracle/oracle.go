// Package oracle produces campaign inputs from a model: email copy, lead
// search filters and ICP suggestions.
package oracle

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/filter"
	"github.com/sells-group/outreach-cli/internal/model"
)

// MaxVariants is the number of copy variants a campaign step accepts.
const MaxVariants = 3

// MaxICPs caps SuggestICPs.
const MaxICPs = 10

// SenderPlaceholder is replaced with the sender's name in generated copy.
const SenderPlaceholder = "[Your Name]"

// FilterOracle turns an audience description into a lead search filter.
type FilterOracle interface {
	GenerateFilters(ctx context.Context, audience, url string) (filter.SearchFilter, error)
}

// CopyOracle writes cold email variants for a product and audience.
type CopyOracle interface {
	GenerateCopy(ctx context.Context, url, audience string) ([]model.CopyVariant, error)
}

// ICPOracle proposes ideal customer profiles for a product.
type ICPOracle interface {
	SuggestICPs(ctx context.Context, url string) ([]ICP, error)
}

// Oracle is an implementation of all three roles.
type Oracle interface {
	FilterOracle
	CopyOracle
	ICPOracle
}

// ICP is one suggested ideal customer profile.
type ICP struct {
	Name           string   `json:"name" yaml:"name" validate:"required"`
	Description    string   `json:"description" yaml:"description"`
	TargetAudience string   `json:"target_audience" yaml:"target_audience" validate:"required"`
	PainPoints     []string `json:"pain_points" yaml:"pain_points"`
	CompanySize    string   `json:"company_size" yaml:"company_size"`
}

// ErrNoJSON is returned when a model answer contains no JSON document.
var ErrNoJSON = eris.New("oracle: no json in response")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateVariants trims and checks generated copy: at least one variant,
// each with a subject and a body. Extra variants beyond MaxVariants are
// dropped.
func ValidateVariants(vs []model.CopyVariant) ([]model.CopyVariant, error) {
	out := make([]model.CopyVariant, 0, len(vs))
	for _, v := range vs {
		v.Subject = strings.TrimSpace(v.Subject)
		v.Body = strings.TrimSpace(v.Body)
		if err := validate.Struct(v); err != nil {
			continue
		}
		out = append(out, v)
		if len(out) == MaxVariants {
			break
		}
	}
	if err := validate.Var(out, "min=1"); err != nil {
		return nil, eris.Wrap(err, "oracle: no usable copy variants")
	}
	return out, nil
}

// ValidateICPs drops incomplete profiles and caps the list at MaxICPs.
func ValidateICPs(icps []ICP) ([]ICP, error) {
	out := make([]ICP, 0, len(icps))
	for _, icp := range icps {
		if validate.Struct(icp) != nil {
			continue
		}
		out = append(out, icp)
		if len(out) == MaxICPs {
			break
		}
	}
	if len(out) == 0 {
		return nil, eris.New("oracle: no usable icps")
	}
	return out, nil
}

// WithSender replaces SenderPlaceholder in every variant. An empty name
// leaves the copy unchanged.
func WithSender(vs []model.CopyVariant, name string) []model.CopyVariant {
	name = strings.TrimSpace(name)
	if name == "" {
		return vs
	}
	out := make([]model.CopyVariant, len(vs))
	for i, v := range vs {
		out[i] = model.CopyVariant{
			Subject: strings.ReplaceAll(v.Subject, SenderPlaceholder, name),
			Body:    strings.ReplaceAll(v.Body, SenderPlaceholder, name),
		}
	}
	return out
}

// cleanJSON strips markdown fences and surrounding prose from a model
// answer, keeping the outermost object or array.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	obj := strings.Index(text, "{")
	arr := strings.Index(text, "[")
	open, closer := "{", "}"
	if arr >= 0 && (obj < 0 || arr < obj) {
		open, closer = "[", "]"
	}
	start := strings.Index(text, open)
	end := strings.LastIndex(text, closer)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// SuggestOrFallback asks o for ICPs and falls back to the generic set when
// it fails or o is nil. The second result reports whether the fallback was
// used.
func SuggestOrFallback(ctx context.Context, o ICPOracle, url string) ([]ICP, bool) {
	if o == nil {
		return FallbackICPs(), true
	}
	icps, err := o.SuggestICPs(ctx, url)
	if err != nil {
		zap.L().Warn("oracle: icp suggestion failed, using fallback",
			zap.String("url", url), zap.Error(err))
		return FallbackICPs(), true
	}
	return icps, false
}

// Audience is the copy audience for an ICP: its target audience with the
// pain points appended.
func (i ICP) Audience() string {
	audience := strings.TrimSpace(i.TargetAudience)
	if len(i.PainPoints) == 0 {
		return audience
	}
	return audience + ". Key pain points: " + strings.Join(i.PainPoints, ", ")
}

// CopyOrFallback asks o for copy and falls back to template copy when it
// fails, returns unusable variants or o is nil. The second result reports
// whether the fallback was used.
func CopyOrFallback(ctx context.Context, o CopyOracle, url, audience string) ([]model.CopyVariant, bool) {
	if o == nil {
		return FallbackCopy(url, audience), true
	}
	vs, err := o.GenerateCopy(ctx, url, audience)
	if err == nil {
		vs, err = ValidateVariants(vs)
	}
	if err != nil {
		zap.L().Warn("oracle: copy generation failed, using fallback",
			zap.String("url", url), zap.Error(err))
		return FallbackCopy(url, audience), true
	}
	return vs, false
}

// PickVariant returns variant index of vs, or the last one when index is
// out of range.
func PickVariant(vs []model.CopyVariant, index int) (model.CopyVariant, bool) {
	if len(vs) == 0 {
		return model.CopyVariant{}, false
	}
	return vs[min(max(index, 0), len(vs)-1)], true
}
