package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"
)

// S3Config aponta o bucket que guarda fotos de lesões e termos de
// consentimento. PublicDomain, quando definido, é o CDN usado nas URLs
// gravadas no prontuário; sem ele a URL do próprio endpoint é devolvida.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
}

// S3Uploader envia anexos clínicos via PUT assinado (SigV4), compatível com
// S3 e R2. A assinatura é feita à mão para não arrastar o SDK inteiro por
// causa de uma única operação.
type S3Uploader struct {
	cfg    S3Config
	client *http.Client
}

// NewS3Uploader valida a configuração do bucket e devolve o uploader.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	obrigatorios := map[string]string{
		"endpoint":   cfg.Endpoint,
		"região":     cfg.Region,
		"bucket":     cfg.Bucket,
		"access key": cfg.AccessKey,
		"secret key": cfg.SecretKey,
	}
	for campo, valor := range obrigatorios {
		if strings.TrimSpace(valor) == "" {
			return nil, fmt.Errorf("storage: %s do bucket ausente", campo)
		}
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, errors.New("storage: endpoint deve incluir protocolo http/https")
	}

	return &S3Uploader{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Upload grava o anexo no bucket e devolve a URL a persistir no prontuário.
func (u *S3Uploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	chave := strings.TrimLeft(strings.TrimSpace(input.Key), "/")
	if chave == "" {
		return nil, errors.New("storage: chave do anexo obrigatória")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: anexo vazio")
	}

	chaveEscapada := (&url.URL{Path: chave}).EscapedPath()
	destino := fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.cfg.Endpoint, "/"), u.cfg.Bucket, chaveEscapada)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, destino, bytes.NewReader(input.Body))
	if err != nil {
		return nil, err
	}

	hashCorpo := sha256.Sum256(input.Body)
	hashCorpoHex := hex.EncodeToString(hashCorpo[:])

	req.Header.Set("Content-Type", tipoDoAnexo(input.ContentType, chave))
	req.Header.Set("Content-Length", fmt.Sprintf("%d", len(input.Body)))
	req.Header.Set("x-amz-content-sha256", hashCorpoHex)
	req.ContentLength = int64(len(input.Body))

	u.assinar(req, hashCorpoHex, time.Now().UTC())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		corpo, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("storage: upload do anexo falhou (%d): %s", resp.StatusCode, strings.TrimSpace(string(corpo)))
	}

	if strings.TrimSpace(u.cfg.PublicDomain) != "" {
		return &UploadResult{URL: fmt.Sprintf("%s/%s", strings.TrimRight(u.cfg.PublicDomain, "/"), chaveEscapada)}, nil
	}
	return &UploadResult{URL: destino}, nil
}

// tipoDoAnexo usa o Content-Type do multipart quando veio preenchido e cai
// para a extensão da chave (fotos .jpg/.png, termos .pdf).
func tipoDoAnexo(declarado, chave string) string {
	if tipo := strings.TrimSpace(declarado); tipo != "" {
		return tipo
	}
	if tipo := mime.TypeByExtension(path.Ext(chave)); tipo != "" {
		return tipo
	}
	return "application/octet-stream"
}

// assinar aplica AWS SigV4 (serviço s3, único que usamos) sobre a requisição.
func (u *S3Uploader) assinar(req *http.Request, hashCorpo string, agora time.Time) {
	amzDate := agora.Format("20060102T150405Z")
	dia := agora.Format("20060102")

	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("Host", req.URL.Host)

	cabecalhos, assinados := cabecalhosCanonicos(req.Header)
	requisicaoCanonica := strings.Join([]string{
		req.Method,
		caminhoCanonico(req.URL.Path),
		consultaCanonica(req.URL.Query()),
		cabecalhos,
		assinados,
		hashCorpo,
	}, "\n")

	hashRequisicao := sha256.Sum256([]byte(requisicaoCanonica))

	escopo := fmt.Sprintf("%s/%s/s3/aws4_request", dia, u.cfg.Region)
	baseAssinatura := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		escopo,
		hex.EncodeToString(hashRequisicao[:]),
	}, "\n")

	chave := chaveDeAssinatura(u.cfg.SecretKey, dia, u.cfg.Region)
	assinatura := hex.EncodeToString(hmacSHA256(chave, []byte(baseAssinatura)))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		u.cfg.AccessKey, escopo, assinados, assinatura,
	))
}

func caminhoCanonico(caminho string) string {
	if caminho == "" {
		return "/"
	}
	if !strings.HasPrefix(caminho, "/") {
		caminho = "/" + caminho
	}
	return escaparURI(caminho, false)
}

func consultaCanonica(valores url.Values) string {
	if len(valores) == 0 {
		return ""
	}
	chaves := make([]string, 0, len(valores))
	for chave := range valores {
		chaves = append(chaves, chave)
	}
	sort.Strings(chaves)

	var partes []string
	for _, chave := range chaves {
		vals := valores[chave]
		sort.Strings(vals)
		for _, v := range vals {
			partes = append(partes, fmt.Sprintf("%s=%s", escaparURI(chave, true), escaparURI(v, true)))
		}
	}
	return strings.Join(partes, "&")
}

func cabecalhosCanonicos(h http.Header) (string, string) {
	linhas := make(map[string]string, len(h))
	for nome, valores := range h {
		minusculo := strings.ToLower(nome)
		if minusculo == "authorization" {
			continue
		}
		limpos := make([]string, 0, len(valores))
		for _, v := range valores {
			limpos = append(limpos, strings.TrimSpace(v))
		}
		linhas[minusculo] = strings.Join(limpos, ",")
	}

	nomes := make([]string, 0, len(linhas))
	for nome := range linhas {
		nomes = append(nomes, nome)
	}
	sort.Strings(nomes)

	var canonico strings.Builder
	for _, nome := range nomes {
		canonico.WriteString(nome)
		canonico.WriteString(":")
		canonico.WriteString(linhas[nome])
		canonico.WriteString("\n")
	}
	return canonico.String(), strings.Join(nomes, ";")
}

// escaparURI segue a tabela do SigV4: unreserved intactos, resto em %XX.
func escaparURI(entrada string, escaparBarra bool) string {
	var sb strings.Builder
	for i := 0; i < len(entrada); i++ {
		c := entrada[i]
		switch {
		case (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'),
			c == '-' || c == '_' || c == '.' || c == '~':
			sb.WriteByte(c)
		case c == '/' && !escaparBarra:
			sb.WriteByte(c)
		default:
			sb.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return sb.String()
}

func chaveDeAssinatura(secret, dia, regiao string) []byte {
	k := hmacSHA256([]byte("AWS4"+secret), []byte(dia))
	k = hmacSHA256(k, []byte(regiao))
	k = hmacSHA256(k, []byte("s3"))
	return hmacSHA256(k, []byte("aws4_request"))
}

func hmacSHA256(chave, dados []byte) []byte {
	mac := hmac.New(sha256.New, chave)
	mac.Write(dados)
	return mac.Sum(nil)
}
