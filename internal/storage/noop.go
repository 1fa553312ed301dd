package storage

import (
	"context"
	"errors"
)

// NoopUploader é o backend padrão quando nenhum bucket foi configurado.
// Rotas clínicas que dependem de anexos falham com erro claro em vez de
// gravar prontuário sem a foto.
type NoopUploader struct{}

func (NoopUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	return nil, errors.New("storage: nenhum backend de anexos configurado")
}
