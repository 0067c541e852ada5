package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCBREndpoint = "https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx"
	keyRateCacheTTL    = 12 * time.Hour
)

// CBRClient получает ключевую ставку ЦБ РФ, ставка кэшируется на keyRateCacheTTL
type CBRClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *logrus.Logger

	mu       sync.Mutex
	cached   decimal.Decimal
	cachedAt time.Time
}

// NewCBRClient создаёт новый экземпляр клиента для взаимодействия с веб-сервисом ЦБ РФ
func NewCBRClient(endpoint string, logger *logrus.Logger) *CBRClient {
	if endpoint == "" {
		endpoint = DefaultCBREndpoint
	}
	return &CBRClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// buildSOAPRequest формирует SOAP-запрос для получения ключевой ставки за последние 30 дней
func buildSOAPRequest(now time.Time) string {
	fromDate := now.AddDate(0, 0, -30).Format("2006-01-02")
	toDate := now.Format("2006-01-02")
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
        <soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
            <soap12:Body>
                <KeyRate xmlns="http://web.cbr.ru/">
                    <fromDate>%s</fromDate>
                    <ToDate>%s</ToDate>
                </KeyRate>
            </soap12:Body>
        </soap12:Envelope>`, fromDate, toDate)
}

func (c *CBRClient) sendRequest(ctx context.Context, soapRequest string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBufferString(soapRequest))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/KeyRate")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка при выполнении HTTP-запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ЦБ РФ ответил статусом %d", resp.StatusCode)
	}

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении ответа: %w", err)
	}
	return rawBody, nil
}

// parseXMLResponse извлекает последнее значение ключевой ставки из ответа
func parseXMLResponse(rawBody []byte) (decimal.Decimal, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return decimal.Zero, fmt.Errorf("ошибка при разборе XML: %w", err)
	}

	krElements := doc.FindElements("//diffgram/KeyRate/KR")
	if len(krElements) == 0 {
		return decimal.Zero, errors.New("данные по ключевой ставке не найдены")
	}

	rateElement := krElements[0].FindElement("./Rate")
	if rateElement == nil {
		return decimal.Zero, errors.New("элемент <Rate> отсутствует в XML-ответе")
	}

	rate, err := decimal.NewFromString(strings.TrimSpace(rateElement.Text()))
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка при преобразовании ставки: %w", err)
	}
	return rate, nil
}

// KeyRate получает актуальную ключевую ставку ЦБ РФ
func (c *CBRClient) KeyRate(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.cachedAt.IsZero() && time.Since(c.cachedAt) < keyRateCacheTTL {
		return c.cached, nil
	}

	c.logger.Info("Отправка запроса в ЦБ РФ для получения ключевой ставки...")
	rawBody, err := c.sendRequest(ctx, buildSOAPRequest(time.Now()))
	if err != nil {
		c.logger.WithError(err).Error("Ошибка при отправке запроса в ЦБ РФ")
		return decimal.Zero, err
	}

	rate, err := parseXMLResponse(rawBody)
	if err != nil {
		c.logger.WithError(err).Error("Ошибка при разборе XML-ответа от ЦБ РФ")
		return decimal.Zero, err
	}

	c.cached, c.cachedAt = rate, time.Now()
	c.logger.WithField("key_rate", rate.String()).Info("Ключевая ставка успешно получена")
	return rate, nil
}
