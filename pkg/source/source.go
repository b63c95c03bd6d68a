// Package source loads HTML pages from files, stdin or http(s) URLs and
// normalizes them to UTF-8.
package source

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"tabcopy/pkg/config"
	"tabcopy/pkg/dom/htmldom"
	"tabcopy/pkg/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxSize is the largest page accepted, in bytes.
const MaxSize = 10 << 20

// Stdin is the target naming standard input.
const Stdin = "-"

type Kind int

const (
	KindFile Kind = iota
	KindStdin
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindStdin:
		return "stdin"
	case KindURL:
		return "url"
	default:
		return "file"
	}
}

// Classify reports how target will be read.
func Classify(target string) Kind {
	if target == Stdin {
		return KindStdin
	}
	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return KindURL
	}
	return KindFile
}

// Page is a loaded source, decoded to UTF-8.
type Page struct {
	Target   string
	Kind     Kind
	MIME     string
	Charset  string
	Body     []byte
	Fetched  time.Time
	Status   int
	FinalURL string
}

// Document parses the page body.
func (p *Page) Document(opts ...htmldom.Option) (*htmldom.Document, error) {
	doc, err := htmldom.Parse(bytes.NewReader(p.Body), opts...)
	if err != nil {
		return nil, errors.NewWithError(errors.ExitCodeSource, errors.ErrMsgParseFailed, err)
	}
	return doc, nil
}

// Loader reads pages. It is safe for concurrent use.
type Loader struct {
	client  *resty.Client
	stdin   io.Reader
	maxSize int64
	logger  zerolog.Logger
}

type Option func(*Loader)

// WithStdin replaces os.Stdin as the reader for "-".
func WithStdin(r io.Reader) Option {
	return func(l *Loader) {
		l.stdin = r
	}
}

func WithMaxSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxSize = n
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) {
		l.logger = log
	}
}

// NewLoader creates a loader whose HTTP client follows cfg.
func NewLoader(cfg config.HTTPConfig, opts ...Option) *Loader {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries()).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= 500
		})

	l := &Loader{
		client:  client,
		stdin:   os.Stdin,
		maxSize: MaxSize,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	client.SetResponseBodyLimit(int(l.maxSize))
	return l
}

// Load reads target, checks that it is text and decodes it to UTF-8.
func (l *Loader) Load(ctx context.Context, target string) (*Page, error) {
	page := &Page{Target: target, Kind: Classify(target)}

	var (
		data        []byte
		contentType string
		err         error
	)
	switch page.Kind {
	case KindURL:
		data, contentType, err = l.fetch(ctx, page)
	case KindStdin:
		data, err = l.readLimited(l.stdin)
		if err != nil {
			err = errors.SourceError("stdin", err)
		}
	default:
		data, err = l.readFile(target)
	}
	if err != nil {
		return nil, err
	}

	mtype := mimetype.Detect(data)
	page.MIME = mtype.String()
	if !isText(mtype) {
		return nil, errors.NewWithSuggestion(errors.ExitCodeValidation,
			fmt.Sprintf("%s is not an HTML page (detected %s)", target, mtype.String()),
			"Pass the saved HTML of the page, not a PDF, image or archive.")
	}

	body, cs, err := Decode(data, contentType)
	if err != nil {
		return nil, errors.SourceError(target, err)
	}
	page.Body = body
	page.Charset = cs
	page.Fetched = time.Now()

	l.logger.Debug().
		Str("target", target).
		Str("kind", page.Kind.String()).
		Str("mime", page.MIME).
		Str("charset", cs).
		Int("bytes", len(body)).
		Msg("source loaded")

	return page, nil
}

func (l *Loader) fetch(ctx context.Context, page *Page) ([]byte, string, error) {
	resp, err := l.client.R().SetContext(ctx).Get(page.Target)
	if err != nil {
		if stderrors.Is(err, resty.ErrResponseBodyTooLarge) {
			return nil, "", errors.SourceError(page.Target, fmt.Errorf("response exceeds maximum size of %d bytes", l.maxSize))
		}
		if ctx.Err() != nil {
			return nil, "", errors.CancelledError("fetching " + page.Target)
		}
		return nil, "", errors.FetchError(page.Target, err)
	}

	page.Status = resp.StatusCode()
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		page.FinalURL = resp.RawResponse.Request.URL.String()
	}
	if resp.IsError() {
		return nil, "", errors.FetchError(page.Target, fmt.Errorf("HTTP %s", resp.Status()))
	}

	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

func (l *Loader) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.SourceError(path, err)
	}
	defer f.Close()

	data, err := l.readLimited(f)
	if err != nil {
		return nil, errors.SourceError(path, err)
	}
	return data, nil
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxSize {
		return nil, fmt.Errorf("input exceeds maximum size of %d bytes", l.maxSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input is empty")
	}
	return data, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("text/html") || m.Is("application/xhtml+xml") {
			return true
		}
	}
	return false
}

// DetectCharset guesses the encoding of data, defaulting to utf-8.
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// Decode converts data to UTF-8. The charset comes from the Content-Type
// header when it names one, otherwise valid UTF-8 is kept as is and
// anything else goes through detection. It returns the label used.
func Decode(data []byte, contentType string) ([]byte, string, error) {
	label := ""
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			label = strings.ToLower(params["charset"])
		}
	}
	if label == "" {
		if utf8.Valid(data) {
			return data, "utf-8", nil
		}
		label = DetectCharset(data)
	}
	if label == "utf-8" || label == "utf8" {
		return data, "utf-8", nil
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return nil, label, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, label, err
	}
	return out, label, nil
}
