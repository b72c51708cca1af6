package ci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-github/v58/github"
)

// ReleaseRequest describes a release to publish.
type ReleaseRequest struct {
	Tag             string
	Name            string
	Body            string
	TargetCommitish string
	Draft           bool
	Prerelease      bool
	Assets          []string
}

// Asset is an uploaded release asset.
type Asset struct {
	Path string
	Name string
	URL  string
}

// AssetError records a failed upload.
type AssetError struct {
	Path string
	Err  error
}

func (e AssetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e AssetError) Unwrap() error {
	return e.Err
}

// ErrAssetUpload is matched by the error returned when some assets failed.
var ErrAssetUpload = errors.New("asset upload failed")

// Published is the outcome of PublishRelease. Failures lists assets that
// could not be uploaded while the release itself exists.
type Published struct {
	ID       int64
	URL      string
	Assets   []Asset
	Failures []AssetError
}

// PublishRelease creates the release and uploads its assets. When only some
// assets fail the release is returned together with an error wrapping
// ErrAssetUpload.
func (c *Client) PublishRelease(ctx context.Context, req ReleaseRequest) (*Published, error) {
	name := req.Name
	if name == "" {
		name = req.Tag
	}
	rel := &github.RepositoryRelease{
		TagName:    github.String(req.Tag),
		Name:       github.String(name),
		Body:       github.String(req.Body),
		Draft:      github.Bool(req.Draft),
		Prerelease: github.Bool(req.Prerelease),
	}
	if req.TargetCommitish != "" {
		rel.TargetCommitish = github.String(req.TargetCommitish)
	}

	c.logger.Info("creating release", "repo", c.Repo(), "tag", req.Tag, "draft", req.Draft, "prerelease", req.Prerelease)
	var created *github.RepositoryRelease
	err := c.retryWithBackoff(ctx, "create release", c.retryAttempts, c.retryDelay, transient, func() error {
		r, _, err := c.client.Repositories.CreateRelease(ctx, c.owner, c.repo, rel)
		if err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create release %s: %w", req.Tag, err)
	}

	pub := &Published{
		ID:  created.GetID(),
		URL: created.GetHTMLURL(),
	}
	c.logger.Info("release created", "id", pub.ID, "url", pub.URL)

	for _, path := range req.Assets {
		asset, err := c.uploadAsset(ctx, pub.ID, path)
		if err != nil {
			c.logger.Error("failed to upload asset", "file", path, "error", err)
			pub.Failures = append(pub.Failures, AssetError{Path: path, Err: err})
			continue
		}
		pub.Assets = append(pub.Assets, *asset)
	}

	if len(pub.Failures) > 0 {
		errs := make([]error, 0, len(pub.Failures))
		for _, f := range pub.Failures {
			errs = append(errs, f)
		}
		return pub, fmt.Errorf("%w: %d of %d: %w", ErrAssetUpload, len(pub.Failures), len(req.Assets), errors.Join(errs...))
	}
	return pub, nil
}

func (c *Client) uploadAsset(ctx context.Context, releaseID int64, path string) (*Asset, error) {
	name := filepath.Base(path)
	var uploaded *github.ReleaseAsset
	err := c.retryWithBackoff(ctx, "upload asset", c.retryAttempts, c.retryDelay, transient, func() error {
		// the upload consumes the file, so reopen on every attempt
		f, err := os.Open(path)
		if err != nil {
			return retryStop(err)
		}
		defer f.Close()
		a, _, err := c.client.Repositories.UploadReleaseAsset(ctx, c.owner, c.repo, releaseID, &github.UploadOptions{Name: name}, f)
		if err != nil {
			return err
		}
		uploaded = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("uploaded asset", "file", path, "url", uploaded.GetBrowserDownloadURL())
	return &Asset{Path: path, Name: uploaded.GetName(), URL: uploaded.GetBrowserDownloadURL()}, nil
}
