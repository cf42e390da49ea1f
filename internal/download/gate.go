package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/repository"
	"github.com/fjod/go_store/pkg/logger"
)

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidToken  = errors.New("invalid download link")
	ErrLinkExpired   = errors.New("download link has expired")
	ErrFileNotFound  = errors.New("file not found on server")
	ErrOrderNotFound = repository.ErrOrderNotFound
)

const DefaultTTL = 24 * time.Hour

var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"zip":  "application/zip",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"txt":  "text/plain",
}

type Store interface {
	GetOrderByID(ctx context.Context, id string) (*domain.OrderDetails, error)
	CreateDownloadVerification(ctx context.Context, v *domain.DownloadVerification) error
	GetDownloadVerification(ctx context.Context, id string) (*domain.DownloadVerification, *domain.Product, error)
	DeleteDownloadVerification(ctx context.Context, id string) error
}

// Delivery is either a redirect to a remote file or an open local file.
type Delivery struct {
	RedirectURL string

	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

func (d *Delivery) IsRedirect() bool {
	return d.RedirectURL != ""
}

type Gate struct {
	store Store
	files fs.FS
	ttl   time.Duration
	now   func() time.Time
}

// NewGate serves local product files from files. Product file paths are
// resolved relative to its root.
func NewGate(store Store, files fs.FS, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Gate{
		store: store,
		files: files,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a download token for an order owned by caller.
func (g *Gate) Issue(ctx context.Context, caller *domain.Identity, orderID string) (*domain.DownloadVerification, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	order, err := g.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if order.UserID != caller.UserID {
		return nil, ErrOrderNotFound
	}

	v := &domain.DownloadVerification{
		OrderID:   order.ID,
		ProductID: order.ProductID,
		ExpiresAt: g.now().Add(g.ttl),
	}
	if err := g.store.CreateDownloadVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("create download verification: %w", err)
	}
	logger.FromContext(ctx).Info().
		Str("order_id", order.ID).
		Str("token", v.ID).
		Time("expires_at", v.ExpiresAt).
		Msg("download link issued")
	return v, nil
}

// Redeem consumes a token and returns what to deliver. A token is consumed
// only when a delivery is produced; a missing local file leaves it intact.
func (g *Gate) Redeem(ctx context.Context, token string) (*Delivery, error) {
	log := logger.FromContext(ctx)

	v, product, err := g.store.GetDownloadVerification(ctx, token)
	if errors.Is(err, repository.ErrVerificationNotFound) || errors.Is(err, repository.ErrProductNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("get download verification: %w", err)
	}

	if v.Expired(g.now()) {
		if err := g.store.DeleteDownloadVerification(ctx, token); err != nil && !errors.Is(err, repository.ErrVerificationNotFound) {
			log.Error().Err(err).Str("token", token).Msg("failed to delete expired download link")
		}
		return nil, ErrLinkExpired
	}

	if product.HasRemoteFile() {
		if err := g.consume(ctx, token); err != nil {
			return nil, err
		}
		log.Info().Str("token", token).Str("product_id", product.ID).Msg("download redirected")
		return &Delivery{RedirectURL: product.FilePath}, nil
	}

	name, ok := localPath(product.FilePath)
	if !ok {
		return nil, ErrFileNotFound
	}
	f, err := g.files.Open(name)
	if err != nil {
		log.Warn().Err(err).Str("file", name).Msg("download file missing")
		return nil, ErrFileNotFound
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return nil, ErrFileNotFound
	}

	if err := g.consume(ctx, token); err != nil {
		_ = f.Close()
		return nil, err
	}

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	log.Info().Str("token", token).Str("product_id", product.ID).Int64("bytes", info.Size()).Msg("download served")
	return &Delivery{
		Body:          f,
		ContentType:   ContentTypeFor(ext),
		ContentLength: info.Size(),
		Filename:      attachmentName(product.Name, ext),
	}, nil
}

func (g *Gate) consume(ctx context.Context, token string) error {
	err := g.store.DeleteDownloadVerification(ctx, token)
	if errors.Is(err, repository.ErrVerificationNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("consume download verification: %w", err)
	}
	return nil
}

func ContentTypeFor(ext string) string {
	if ct, ok := contentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// localPath maps a stored file reference like "/products/a.pdf" to a path
// inside the files root. References escaping the root are rejected.
func localPath(ref string) (string, bool) {
	if strings.Contains(ref, "\\") {
		return "", false
	}
	trimmed := strings.TrimLeft(ref, "/")
	if trimmed == "" {
		return "", false
	}
	name := path.Clean(trimmed)
	if !fs.ValidPath(name) || name == "." {
		return "", false
	}
	return name, true
}

func attachmentName(productName, ext string) string {
	name := strings.Map(func(r rune) rune {
		if r == '"' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, productName)
	if ext == "" {
		return name
	}
	return name + "." + ext
}
