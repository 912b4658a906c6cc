package helpers

import (
	"fmt"
	"html"
)

// BuildVerifySuccessHTML - страница после погашения ссылки approve/deny.
func BuildVerifySuccessHTML(status, dashboardURL string) string {
	return fmt.Sprintf(`
<html>
  <body style="font-family:Arial,sans-serif; background:#f9f9f9;">
    <table width="100%%" cellpadding="0" cellspacing="0" bgcolor="#f9f9f9">
      <tr>
        <td align="center" style="padding:48px 0;">
          <table width="440" bgcolor="#fff" cellpadding="24" cellspacing="0" style="border-radius:10px; box-shadow:0 1px 8px #eee;">
            <tr>
              <td align="center">
                <div style="font-size:60px;line-height:1;margin-bottom:18px;">✅</div>
                <h2 style="color:#667eea; margin:0 0 16px 0;">Hours %s</h2>
                <div style="font-size:17px; color:#222;">
                  Thank you, your decision has been recorded.<br>
                  The student will be notified by email.
                </div>
                <a href="%s" style="display:inline-block;padding:13px 32px;margin:32px 0 0 0;background:#667eea;color:#fff;text-decoration:none;border-radius:7px;font-weight:600;font-size:15px;">
                  Go to CATA Volunteer
                </a>
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>
`, html.EscapeString(status), html.EscapeString(dashboardURL))
}

// BuildVerifyAlreadyUsedHTML - страница для повторно открытой ссылки: решение уже принято ранее.
func BuildVerifyAlreadyUsedHTML(status, dashboardURL string) string {
	return fmt.Sprintf(`
<html>
  <body style="font-family:Arial,sans-serif; background:#f9f9f9;">
    <table width="100%%" cellpadding="0" cellspacing="0" bgcolor="#f9f9f9">
      <tr>
        <td align="center" style="padding:48px 0;">
          <table width="440" bgcolor="#fff" cellpadding="24" cellspacing="0" style="border-radius:10px; box-shadow:0 1px 8px #eee;">
            <tr>
              <td align="center">
                <div style="font-size:60px;line-height:1;margin-bottom:18px;">ℹ️</div>
                <h2 style="color:#667eea; margin:0 0 16px 0;">This link has already been used</h2>
                <div style="font-size:17px; color:#222;">
                  These hours were already processed and are currently <b>%s</b>.<br>
                  Nothing was changed.
                </div>
                <a href="%s" style="display:inline-block;padding:13px 32px;margin:32px 0 0 0;background:#667eea;color:#fff;text-decoration:none;border-radius:7px;font-weight:600;font-size:15px;">
                  Go to CATA Volunteer
                </a>
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>
`, html.EscapeString(status), html.EscapeString(dashboardURL))
}

// BuildVerifyErrorHTML - страница ошибки погашения ссылки.
func BuildVerifyErrorHTML(errorMsg, homeURL string) string {
	return fmt.Sprintf(`
<html>
  <body style="font-family:Arial,sans-serif; background:#f9f9f9;">
    <table width="100%%" cellpadding="0" cellspacing="0" bgcolor="#f9f9f9">
      <tr>
        <td align="center" style="padding:48px 0;">
          <table width="440" bgcolor="#fff" cellpadding="24" cellspacing="0" style="border-radius:10px; box-shadow:0 1px 8px #eee;">
            <tr>
              <td align="center">
                <div style="font-size:60px;line-height:1;margin-bottom:18px;">❌</div>
                <h2 style="color:#ee4444; margin:0 0 16px 0;">Verification failed</h2>
                <div style="font-size:17px; color:#222;">%s</div>
                <a href="%s" style="display:inline-block;padding:13px 32px;margin:32px 0 0 0;background:#ee4444;color:#fff;text-decoration:none;border-radius:7px;font-weight:600;font-size:15px;">
                  Home
                </a>
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>
`, html.EscapeString(errorMsg), html.EscapeString(homeURL))
}
