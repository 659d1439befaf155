package mlflow

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/databricks/databricks-sdk-go/service/files"
	"github.com/databricks/databricks-sdk-go/service/ml"
)

// dbfsChunkSize is the amount of raw file data sent per add-block call;
// the DBFS API caps each base64-encoded block at 1 MB.
const dbfsChunkSize = 768 * 1024

// UploadArtifact attaches a local file to the run, under artifactPath
// (the file's base name when empty). The storage backend is picked from
// the run's artifact URI scheme.
func (c *Client) UploadArtifact(ctx context.Context, runID, filePath, artifactPath string) error {
	artifactURI, err := c.artifactURI(ctx, runID)
	if err != nil {
		return err
	}
	if artifactPath == "" {
		artifactPath = filepath.Base(filePath)
	}

	switch {
	case strings.HasPrefix(artifactURI, "mlflow-artifacts:/"):
		return c.uploadViaArtifactsService(ctx, artifactURI, filePath, artifactPath)
	case strings.HasPrefix(artifactURI, "dbfs:/"):
		return c.uploadToDBFS(ctx, artifactURI, filePath, artifactPath)
	case strings.HasPrefix(artifactURI, "file://"), strings.HasPrefix(artifactURI, "/"):
		return c.copyToLocalStore(artifactURI, filePath, artifactPath)
	default:
		return fmt.Errorf("unsupported artifact URI scheme: %s", artifactURI)
	}
}

// UploadArtifacts uploads files keyed by local path to artifact path.
func (c *Client) UploadArtifacts(ctx context.Context, runID string, artifacts map[string]string) error {
	for filePath, artifactPath := range artifacts {
		if err := c.UploadArtifact(ctx, runID, filePath, artifactPath); err != nil {
			return fmt.Errorf("failed to upload %s: %w", filePath, err)
		}
	}
	return nil
}

func (c *Client) artifactURI(ctx context.Context, runID string) (string, error) {
	resp, err := c.client.Experiments.GetRun(ctx, ml.GetRunRequest{RunId: runID})
	if err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}
	if resp.Run.Info.ArtifactUri == "" {
		return "", fmt.Errorf("artifact URI not found for run %s", runID)
	}
	return resp.Run.Info.ArtifactUri, nil
}

// uploadViaArtifactsService PUTs the file through the tracking server's
// artifacts REST endpoint.
func (c *Client) uploadViaArtifactsService(ctx context.Context, artifactURI, filePath, artifactPath string) error {
	experimentID, runID, err := splitArtifactsURI(artifactURI)
	if err != nil {
		return err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	url := fmt.Sprintf("%s/api/2.0/mlflow-artifacts/artifacts/%s/%s/artifacts/%s",
		strings.TrimSuffix(c.config.TrackingURI, "/"), experimentID, runID, artifactPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, file)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = info.Size()
	c.addAuthHeaders(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("artifact upload failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// uploadToDBFS streams the file through the DBFS block API.
func (c *Client) uploadToDBFS(ctx context.Context, artifactURI, filePath, artifactPath string) error {
	target := strings.TrimSuffix(artifactURI, "/") + "/" + artifactPath
	dbfsPath := strings.TrimPrefix(target, "dbfs:")

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	created, err := c.client.Dbfs.Create(ctx, files.Create{
		Path:      dbfsPath,
		Overwrite: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create DBFS file: %w", err)
	}

	buf := make([]byte, dbfsChunkSize)
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			err := c.client.Dbfs.AddBlock(ctx, files.AddBlock{
				Handle: created.Handle,
				Data:   base64.StdEncoding.EncodeToString(buf[:n]),
			})
			if err != nil {
				return fmt.Errorf("failed to upload DBFS block: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", filePath, readErr)
		}
	}

	if err := c.client.Dbfs.Close(ctx, files.Close{Handle: created.Handle}); err != nil {
		return fmt.Errorf("failed to finalize DBFS file: %w", err)
	}
	return nil
}

func (c *Client) copyToLocalStore(artifactURI, filePath, artifactPath string) error {
	dest := filepath.Join(strings.TrimPrefix(artifactURI, "file://"), artifactPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	src, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	return nil
}

// splitArtifactsURI pulls the experiment and run IDs out of an
// mlflow-artifacts:/{experiment}/{run}/artifacts URI.
func splitArtifactsURI(artifactURI string) (experimentID, runID string, err error) {
	trimmed := strings.TrimPrefix(artifactURI, "mlflow-artifacts:")
	parts := strings.Split(strings.TrimPrefix(trimmed, "/"), "/")
	if len(parts) < 3 {
		return "", "", fmt.Errorf("invalid mlflow-artifacts URI: %s", artifactURI)
	}
	return parts[0], parts[1], nil
}

func (c *Client) addAuthHeaders(req *http.Request) {
	if !c.config.IsDatabricks() {
		return
	}
	if c.client != nil && c.client.Config != nil && c.client.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.client.Config.Token)
	} else if c.config.DatabricksToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.DatabricksToken)
	}
}
