package dolls

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/petermazzocco/go-doll-studio/internal/media"
	"go.uber.org/zap"
)

// CacheVideo downloads a rendered video and keeps a copy under videos/.
// The filename usually embeds the doll id, but nothing checks that.
func (s *Service) CacheVideo(ctx context.Context, sourceURL, filename string) (CachedVideo, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return CachedVideo{}, validationError("A valid http(s) videoUrl is required")
	}
	if media.SanitizeName(filename) == "" {
		return CachedVideo{}, validationError("A filename is required")
	}
	if err := media.Video.Check(filename); err != nil {
		return CachedVideo{}, s.mediaError(err, "Failed to store video")
	}

	s.log.Info("downloading video", zap.String("url", u.Redacted()), zap.String("filename", filename))
	resp, err := s.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		s.log.Error("video download failed", zap.String("url", u.Redacted()), zap.Error(err))
		return CachedVideo{}, upstreamError("Failed to download video", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode())
		s.log.Error("video download failed", zap.String("url", u.Redacted()), zap.Error(err))
		return CachedVideo{}, upstreamError("Failed to download video", err)
	}

	key, err := s.media.SaveAs(ctx, body, media.VideosDir, filename, media.Video)
	if err != nil {
		if errors.Is(err, media.ErrTooLarge) {
			return CachedVideo{}, upstreamError("Downloaded video exceeds the size limit", err)
		}
		return CachedVideo{}, s.mediaError(err, "Failed to store video")
	}

	s.log.Info("video saved", zap.String("key", key))
	return CachedVideo{Filename: strings.TrimPrefix(key, media.VideosDir+"/"), Path: s.media.URL(key)}, nil
}
