// Package contentsafety validates user input and assistant output against
// a closed set of unsafe categories, and sanitizes text before it is
// stored or displayed.
package contentsafety

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/contextgate/gateway/pkg/errx"
	"github.com/contextgate/gateway/pkg/logx"
)

var errorRegistry = errx.NewRegistry("CONTENTSAFETY")

var ErrUnsafeContent = errorRegistry.Register(
	"UNSAFE_CONTENT",
	errx.TypeContentSafety,
	http.StatusUnprocessableEntity,
	"Content failed safety validation",
)

// Category is the closed set of reasons content can be rejected for.
type Category string

const (
	CategoryMedicalAdvice        Category = "medical_advice"
	CategoryFinancialAdvice      Category = "financial_advice"
	CategoryLegalAdvice          Category = "legal_advice"
	CategoryProductMarketing     Category = "product_marketing"
	CategoryHarmfulContent       Category = "harmful_content"
	CategoryAdultContent         Category = "adult_content"
	CategoryGambling             Category = "gambling"
	CategoryDrugs                Category = "drugs"
	CategoryPromptInjection      Category = "prompt_injection"
	CategorySuspiciousRepetition Category = "suspicious_repetition"
	CategorySuspiciousUnicode    Category = "suspicious_unicode"
)

// Language selects which localized message a rejection is reported in.
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageVietnamese Language = "vi"
)

// Verdict is a classification result, from either the AI classifier or a
// pattern-based fallback check.
type Verdict struct {
	IsSafe   bool
	Reason   string
	Category Category
}

// Classifier asks a model for a safety verdict on a piece of text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// Config tunes a Pipeline.
type Config struct {
	AiEnabled bool
}

// Pipeline is the Content Safety Pipeline: AI-assisted classification
// with a pattern-based fallback, plus text sanitization.
type Pipeline struct {
	classifier Classifier
	aiEnabled  atomic.Bool
}

// New creates a Pipeline. classifier may be nil, in which case pattern
// checks always run regardless of AiEnabled.
func New(classifier Classifier, cfg Config) *Pipeline {
	p := &Pipeline{classifier: classifier}
	p.aiEnabled.Store(cfg.AiEnabled && classifier != nil)
	return p
}

// EnableAiContentSafety toggles AI-assisted classification at runtime.
func (p *Pipeline) EnableAiContentSafety(enabled bool) {
	p.aiEnabled.Store(enabled && p.classifier != nil)
}

// ValidateContent checks user input against safety rules, returning
// ErrUnsafeContent (with a category detail) when it fails.
func (p *Pipeline) ValidateContent(ctx context.Context, text string) error {
	verdict, err := p.classify(ctx, text)
	if err != nil {
		return err
	}
	if !verdict.IsSafe {
		return errorRegistry.New(ErrUnsafeContent).
			WithDetail("category", string(verdict.Category)).
			WithDetail("reason", verdict.Reason)
	}
	return nil
}

// ValidateResponse checks assistant output, localizing the rejection
// message to language when the content is unsafe.
func (p *Pipeline) ValidateResponse(ctx context.Context, text string, language Language) error {
	verdict, err := p.classify(ctx, text)
	if err != nil {
		return err
	}
	if !verdict.IsSafe {
		return errorRegistry.New(ErrUnsafeContent).
			WithDetail("category", string(verdict.Category)).
			WithDetail("reason", verdict.Reason).
			WithDetail("message", localize(verdict.Category, language))
	}
	return nil
}

func (p *Pipeline) classify(ctx context.Context, text string) (Verdict, error) {
	if p.aiEnabled.Load() {
		verdict, err := p.classifier.Classify(ctx, text)
		if err == nil {
			return verdict, nil
		}
		logx.WithError(err).Warn("contentsafety: AI classifier failed, falling back to pattern checks")
	}
	return patternCheck(text), nil
}

func localize(cat Category, lang Language) string {
	msgs, ok := localizedMessages[cat]
	if !ok {
		msgs = localizedMessages[CategoryHarmfulContent]
	}
	if lang == LanguageVietnamese {
		return msgs.vi
	}
	return msgs.en
}

type localizedPair struct{ en, vi string }

var localizedMessages = map[Category]localizedPair{
	CategoryMedicalAdvice:        {"This response may contain medical advice and was withheld.", "Phản hồi này có thể chứa tư vấn y tế và đã bị chặn."},
	CategoryFinancialAdvice:      {"This response may contain financial advice and was withheld.", "Phản hồi này có thể chứa tư vấn tài chính và đã bị chặn."},
	CategoryLegalAdvice:          {"This response may contain legal advice and was withheld.", "Phản hồi này có thể chứa tư vấn pháp lý và đã bị chặn."},
	CategoryProductMarketing:     {"This response looks like product marketing and was withheld.", "Phản hồi này giống quảng cáo sản phẩm và đã bị chặn."},
	CategoryHarmfulContent:       {"This content was withheld for safety reasons.", "Nội dung này đã bị chặn vì lý do an toàn."},
	CategoryAdultContent:         {"This content was withheld as adult content.", "Nội dung này đã bị chặn vì là nội dung người lớn."},
	CategoryGambling:             {"This content was withheld for referencing gambling.", "Nội dung này đã bị chặn vì liên quan đến cờ bạc."},
	CategoryDrugs:                {"This content was withheld for referencing drugs.", "Nội dung này đã bị chặn vì liên quan đến ma túy."},
	CategoryPromptInjection:      {"This input was withheld as a potential prompt injection.", "Đầu vào này đã bị chặn vì có khả năng là tấn công chèn lệnh."},
	CategorySuspiciousRepetition: {"This input was withheld for suspicious repetition.", "Đầu vào này đã bị chặn vì lặp lại đáng ngờ."},
	CategorySuspiciousUnicode:    {"This input was withheld for suspicious characters.", "Đầu vào này đã bị chặn vì chứa ký tự đáng ngờ."},
}
