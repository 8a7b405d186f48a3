package payment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// md5Upper возвращает MD5-дайджест строки в верхнем регистре hex.
func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// FormatAmountMinor приводит сумму в минорных единицах к строке шлюза с двумя
// десятичными знаками. Участвует в вычислении хэшей, поэтому формат фиксирован.
func FormatAmountMinor(amountMinor int64) string {
	return fmt.Sprintf("%d.%02d", amountMinor/100, amountMinor%100)
}

// PaymentHash считает подпись запроса на оплату:
// MD5(merchantId + gatewayOrderId + amount + currency + MD5(secret) в верхнем
// регистре), всё в верхнем регистре.
func PaymentHash(merchantID, gatewayOrderID, amount, currency, merchantSecret string) string {
	return md5Upper(merchantID + gatewayOrderID + amount + currency + md5Upper(merchantSecret))
}

// NotificationHash считает подпись уведомления шлюза: между валютой и
// секретом вставляется код статуса.
func NotificationHash(merchantID, gatewayOrderID, amount, currency, statusCode, merchantSecret string) string {
	return md5Upper(merchantID + gatewayOrderID + amount + currency + statusCode + md5Upper(merchantSecret))
}

// VerifySignature сравнивает подписи без учёта регистра.
func VerifySignature(expected, supplied string) bool {
	return strings.EqualFold(expected, supplied)
}
