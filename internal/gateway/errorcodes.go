package gateway

// errorReasons maps the bank's numeric rejection codes to their catalogued
// meanings. The catalogue is data published by the bank; unknown codes fall
// back to a generic reason rather than failing the decode.
var errorReasons = map[string]string{
	"11":  "شماره کارت نامعتبر است - Invalid card number",
	"12":  "موجودی کافی نیست - Insufficient balance",
	"13":  "رمز نادرست است - Incorrect password",
	"14":  "تعداد دفعات وارد کردن رمز بیش از حد مجاز است - Too many password attempts",
	"15":  "کارت نامعتبر است - Invalid card",
	"16":  "دفعات برداشت وجه بیش از حد مجاز است - Withdrawal frequency exceeded",
	"17":  "کاربر از انجام تراکنش منصرف شده است - User cancelled transaction",
	"18":  "تاریخ انقضای کارت گذشته است - Card expired",
	"19":  "مبلغ برداشت وجه بیش از حد مجاز است - Withdrawal amount exceeds limit",
	"21":  "پذیرنده نامعتبر است - Invalid merchant",
	"23":  "خطای امنیتی رخ داده است - Security error",
	"24":  "اطلاعات کاربری پذیرنده نامعتبر است - Invalid merchant user info",
	"25":  "مبلغ نامعتبر است - Invalid amount",
	"31":  "پاسخ نامعتبر است - Invalid response",
	"32":  "فرمت اطلاعات وارد شده صحیح نمی‌باشد - Invalid data format",
	"33":  "حساب نامعتبر است - Invalid account",
	"34":  "خطای سیستمی - System error",
	"35":  "تاریخ نامعتبر است - Invalid date",
	"41":  "شماره درخواست تکراری است - Duplicate request number",
	"42":  "تراکنش Sale یافت نشد - Sale transaction not found",
	"43":  "قبلا درخواست Verify داده شده است - Verify request already submitted",
	"44":  "درخواست Verify یافت نشد - Verify request not found",
	"45":  "تراکنش Settle شده است - Transaction already settled",
	"46":  "تراکنش Settle نشده است - Transaction not settled",
	"47":  "تراکنش Settle یافت نشد - Settle transaction not found",
	"48":  "تراکنش Reverse شده است - Transaction reversed",
	"49":  "تراکنش Refund یافت نشد - Refund transaction not found",
	"51":  "تراکنش تکراری است - Duplicate transaction",
	"54":  "تراکنش مرجع موجود نیست - Reference transaction not found",
	"55":  "تراکنش نامعتبر است - Invalid transaction",
	"61":  "خطا در واریز - Deposit error",
	"62":  "مسیر بازگشت به سایت در دامنه ثبت شده برای پذیرنده قرار ندارد - Return URL not in registered domain",
	"98":  "سقف استفاده از رمز ایستا به پایان رسیده است - Static password usage limit reached",
	"111": "صادر کننده کارت نامعتبر است - Invalid card issuer",
	"112": "خطای سوییچ صادر کننده کارت - Card issuer switch error",
	"113": "پاسخی از صادر کننده کارت دریافت نشد - No response from card issuer",
	"114": "دارنده کارت مجاز به انجام این تراکنش نیست - Cardholder not authorized",
	"412": "شناسه قبض نادرست است - Invalid bill identifier",
	"413": "شناسه پرداخت نادرست است - Invalid payment identifier",
	"414": "سازمان صادر کننده قبض نامعتبر است - Invalid bill issuer",
	"415": "زمان جلسه کاری به پایان رسیده است - Session timeout",
	"416": "خطا در ثبت اطلاعات - Data registration error",
	"417": "شناسه پرداخت کننده نامعتبر است - Invalid payer identifier",
	"418": "اشکال در تعریف اطلاعات مشتری - Customer data definition error",
	"419": "تعداد دفعات ورود اطلاعات از حد مجاز گذشته است - Data entry attempts exceeded",
	"421": "IP نامعتبر است - Invalid IP address",
}

// ReasonFor returns the catalogued description for a bank rejection code.
func ReasonFor(code string) string {
	if reason, ok := errorReasons[code]; ok {
		return reason
	}
	return "unknown gateway error"
}
