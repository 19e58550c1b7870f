package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/evangeline-go/evangeline/internal/model"
)

// AttachmentsBucket is the bucket message attachments are stored in.
const AttachmentsBucket = "attachments"

// Upload is a file to send to the CDN.
type Upload struct {
	Name    string
	Content io.Reader
	Spoiler bool
}

// UploadAttachment uploads a file to the attachments bucket.
func (c *Client) UploadAttachment(ctx context.Context, up Upload) (*model.FileData, error) {
	return c.UploadFile(ctx, AttachmentsBucket, up)
}

// UploadFile uploads a file to bucket as multipart form data with a "file"
// part and a "spoiler" field.
func (c *Client) UploadFile(ctx context.Context, bucket string, up Upload) (*model.FileData, error) {
	if up.Content == nil {
		return nil, fmt.Errorf("upload %s: no content", up.Name)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", up.Name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, up.Content); err != nil {
		return nil, fmt.Errorf("read upload %s: %w", up.Name, err)
	}
	if err := mw.WriteField("spoiler", strconv.FormatBool(up.Spoiler)); err != nil {
		return nil, fmt.Errorf("write spoiler field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	r := c.cdn(http.MethodPost, "/"+url.PathEscape(bucket), "/{bucket}")
	r.body = buf.Bytes()
	r.contentType = mw.FormDataContentType()

	var data model.FileData
	if err := c.doJSON(ctx, r, &data); err != nil {
		return nil, fmt.Errorf("upload %s to %s: %w", up.Name, bucket, err)
	}
	return &data, nil
}

// AttachmentURL returns the public URL of an uploaded attachment.
func (c *Client) AttachmentURL(id model.ID) string {
	return c.cdnURL + "/" + AttachmentsBucket + "/" + url.PathEscape(string(id))
}

// GetAttachment fetches an attachment's content.
func (c *Client) GetAttachment(ctx context.Context, id model.ID) ([]byte, error) {
	data, err := c.do(ctx, c.cdn(http.MethodGet, "/"+url.PathEscape(string(id)), "/{id}"))
	if err != nil {
		return nil, fmt.Errorf("get attachment %s: %w", id, err)
	}
	return data, nil
}

// GetAttachmentData fetches an attachment's metadata.
func (c *Client) GetAttachmentData(ctx context.Context, id model.ID) (*model.FileData, error) {
	var fd model.FileData
	if err := c.doJSON(ctx, c.cdn(http.MethodGet, "/"+url.PathEscape(string(id))+"/data", "/{id}/data"), &fd); err != nil {
		return nil, fmt.Errorf("get attachment data %s: %w", id, err)
	}
	return &fd, nil
}

// DownloadAttachment fetches an attachment with a download disposition.
func (c *Client) DownloadAttachment(ctx context.Context, id model.ID) ([]byte, error) {
	return c.DownloadFile(ctx, AttachmentsBucket, id)
}

// GetFile fetches a file from bucket.
func (c *Client) GetFile(ctx context.Context, bucket string, id model.ID) ([]byte, error) {
	data, err := c.do(ctx, c.cdn(http.MethodGet, filePath(bucket, id), "/{bucket}/{id}"))
	if err != nil {
		return nil, fmt.Errorf("get file %s/%s: %w", bucket, id, err)
	}
	return data, nil
}

// GetFileData fetches the metadata of a file in bucket.
func (c *Client) GetFileData(ctx context.Context, bucket string, id model.ID) (*model.FileData, error) {
	var fd model.FileData
	if err := c.doJSON(ctx, c.cdn(http.MethodGet, filePath(bucket, id)+"/data", "/{bucket}/{id}/data"), &fd); err != nil {
		return nil, fmt.Errorf("get file data %s/%s: %w", bucket, id, err)
	}
	return &fd, nil
}

// DownloadFile fetches a file from bucket with a download disposition.
func (c *Client) DownloadFile(ctx context.Context, bucket string, id model.ID) ([]byte, error) {
	data, err := c.do(ctx, c.cdn(http.MethodGet, filePath(bucket, id)+"/download", "/{bucket}/{id}/download"))
	if err != nil {
		return nil, fmt.Errorf("download file %s/%s: %w", bucket, id, err)
	}
	return data, nil
}

// GetStaticFile fetches one of the instance's static files.
func (c *Client) GetStaticFile(ctx context.Context, name string) ([]byte, error) {
	data, err := c.do(ctx, c.cdn(http.MethodGet, "/static/"+url.PathEscape(name), "/static/{name}"))
	if err != nil {
		return nil, fmt.Errorf("get static file %s: %w", name, err)
	}
	return data, nil
}

// DownloadStaticFile fetches a static file with a download disposition.
func (c *Client) DownloadStaticFile(ctx context.Context, name string) ([]byte, error) {
	data, err := c.do(ctx, c.cdn(http.MethodGet, "/static/"+url.PathEscape(name)+"/download", "/static/{name}/download"))
	if err != nil {
		return nil, fmt.Errorf("download static file %s: %w", name, err)
	}
	return data, nil
}

func filePath(bucket string, id model.ID) string {
	return "/" + url.PathEscape(bucket) + "/" + url.PathEscape(string(id))
}
