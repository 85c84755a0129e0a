package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"buskalo-bff/internal/cache"
	"buskalo-bff/internal/imaging"
	"buskalo-bff/internal/logger"
	"buskalo-bff/internal/services"

	"github.com/google/uuid"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("upload not found")

const previewQuality = 92

// Upload is a picked image waiting to be cropped and attached to a form.
type Upload struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	ContentType string              `json:"content_type"`
	Original    []byte              `json:"original"`
	Preview     []byte              `json:"preview,omitempty"`
	Crop        *imaging.CropParams `json:"crop,omitempty"`
	HostedURL   string              `json:"hosted_url,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Info is what the browser sees of an upload.
type Info struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	ContentType string              `json:"content_type"`
	Size        int                 `json:"size"`
	Cropped     bool                `json:"cropped"`
	Crop        *imaging.CropParams `json:"crop,omitempty"`
	PreviewURL  string              `json:"preview_url"`
}

func (u *Upload) Info() Info {
	url := u.HostedURL
	if url == "" {
		url = fmt.Sprintf("/api/uploads/%s/preview", u.ID)
	}
	return Info{
		ID:          u.ID,
		Name:        u.Name,
		ContentType: u.ContentType,
		Size:        len(u.Original),
		Cropped:     u.Preview != nil,
		Crop:        u.Crop,
		PreviewURL:  url,
	}
}

// Store keeps uploads per session in the shared cache until they expire.
type Store struct {
	cache cache.Store
	ttl   time.Duration
	opts  imaging.Options
	host  Host
}

// NewStore returns a store. host may be nil, in which case previews are
// served by the BFF itself.
func NewStore(c cache.Store, ttl time.Duration, opts imaging.Options, host Host) *Store {
	return &Store{cache: c, ttl: ttl, opts: opts, host: host}
}

func key(sid, id string) string {
	return "upload:" + sid + ":" + id
}

// Put validates an uploaded file and stores it as a new upload.
func (s *Store) Put(ctx context.Context, sid, name, contentType string, data []byte) (*Upload, error) {
	if _, err := imaging.Decode(name, data); err != nil {
		return nil, err
	}

	u := &Upload{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Original:    data,
		CreatedAt:   time.Now(),
	}
	if err := s.save(ctx, sid, u); err != nil {
		return nil, err
	}
	return u, nil
}

// PutDataURL accepts the data: URL a browser canvas or FileReader produces.
func (s *Store) PutDataURL(ctx context.Context, sid, name, raw string) (*Upload, error) {
	du, err := dataurl.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", imaging.ErrUnsupportedFormat, err)
	}
	if name == "" {
		name = "upload." + du.MediaType.Subtype
	}
	return s.Put(ctx, sid, name, du.ContentType(), du.Data)
}

func (s *Store) Get(ctx context.Context, sid, id string) (*Upload, error) {
	data, err := s.cache.Get(ctx, key(sid, id))
	if errors.Is(err, cache.ErrMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load upload: %w", err)
	}

	var u Upload
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}
	return &u, nil
}

// Crop renders the preview for params and publishes it when a host is set.
func (s *Store) Crop(ctx context.Context, sid, id string, params imaging.CropParams) (*Upload, error) {
	u, err := s.Get(ctx, sid, id)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(u.Name, u.Original)
	if err != nil {
		return nil, err
	}
	preview, err := imaging.EncodeJPEG(imaging.Crop(img, params), previewQuality)
	if err != nil {
		return nil, err
	}
	u.Preview = preview
	u.Crop = &params

	if s.host != nil {
		url, err := s.host.Publish(ctx, u.ID, imaging.Blob{Name: imaging.JPEGName(u.Name), ContentType: "image/jpeg", Data: preview})
		if err != nil {
			logger.FromContext(ctx).Warn("Preview hosting failed, serving locally", zap.String("upload_id", u.ID), zap.Error(err))
			u.HostedURL = ""
		} else {
			u.HostedURL = url
		}
	}

	if err := s.save(ctx, sid, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Preview returns the cropped image, or the original before any crop.
func (s *Store) Preview(ctx context.Context, sid, id string) (imaging.Blob, error) {
	u, err := s.Get(ctx, sid, id)
	if err != nil {
		return imaging.Blob{}, err
	}
	return u.current(), nil
}

func (u *Upload) current() imaging.Blob {
	if u.Preview != nil {
		return imaging.Blob{Name: imaging.JPEGName(u.Name), ContentType: "image/jpeg", Data: u.Preview}
	}
	return imaging.Blob{Name: u.Name, ContentType: u.ContentType, Data: u.Original}
}

// Attachment compresses the upload into a form file named base plus the
// extension of whatever encoding comes out.
func (s *Store) Attachment(ctx context.Context, sid, id, base string) (*services.File, error) {
	u, err := s.Get(ctx, sid, id)
	if err != nil {
		return nil, err
	}

	blob := imaging.CompressOrOriginal(ctx, u.current(), s.opts)
	name := blob.Name
	if base != "" {
		name = base + filepath.Ext(blob.Name)
	}
	return &services.File{Name: name, ContentType: blob.ContentType, Data: blob.Data}, nil
}

// Discard drops an upload once its form was submitted.
func (s *Store) Discard(ctx context.Context, sid, id string) {
	if err := s.cache.Delete(ctx, key(sid, id)); err != nil {
		logger.FromContext(ctx).Warn("Failed to drop upload", zap.String("upload_id", id), zap.Error(err))
	}
	if s.host != nil {
		if err := s.host.Remove(ctx, id); err != nil {
			logger.FromContext(ctx).Debug("Failed to remove hosted preview", zap.String("upload_id", id), zap.Error(err))
		}
	}
}

func (s *Store) save(ctx context.Context, sid string, u *Upload) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	if err := s.cache.Set(ctx, key(sid, u.ID), data, s.ttl); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}
