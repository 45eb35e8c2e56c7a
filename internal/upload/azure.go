package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/Azure/azure-sdk-for-go/storage"
)

// AzureBlob uploads to one Azure Blob storage container.
type AzureBlob struct {
	container *storage.Container
	ensured   bool
}

// NewAzureBlob connects to the storage account with a shared key.
func NewAzureBlob(account, key, container string) (*AzureBlob, error) {
	if container == "" {
		return nil, fmt.Errorf("azure: container name required")
	}
	sc, err := storage.NewBasicClient(account, key)
	if err != nil {
		return nil, err
	}
	blobCli := sc.GetBlobService()
	return &AzureBlob{container: blobCli.GetContainerReference(container)}, nil
}

// Provider implements Uploader.
func (a *AzureBlob) Provider() string { return "azure" }

// ensureContainer creates the container on first use.
func (a *AzureBlob) ensureContainer() error {
	if a.ensured {
		return nil
	}
	if _, err := a.container.CreateIfNotExists(&storage.CreateContainerOptions{
		Access: storage.ContainerAccessTypePrivate,
	}); err != nil {
		return fmt.Errorf("create container %s: %w", a.container.Name, err)
	}
	a.ensured = true
	return nil
}

// Upload writes r as a block blob, replacing any existing blob.
func (a *AzureBlob) Upload(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.ensureContainer(); err != nil {
		return err
	}
	b := a.container.GetBlobReference(key)
	b.Properties.ContentLength = size
	b.Properties.ContentType = mime.TypeByExtension(path.Ext(key))
	return b.CreateBlockBlobFromReader(r, nil)
}

// Exists reports whether a blob with key is present.
func (a *AzureBlob) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := a.ensureContainer(); err != nil {
		return false, err
	}
	return a.container.GetBlobReference(key).Exists()
}
