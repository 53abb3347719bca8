package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-hotel-reservation/internal/domain/reservation"
)

// HeaderUserID は呼び出し元ユーザーを示すヘッダー
const HeaderUserID = "X-User-ID"

func requireUser(c echo.Context) (string, error) {
	userID := c.Request().Header.Get(HeaderUserID)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	return userID, nil
}

// bindAndValidate はリクエストボディを読み込み検証する
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト").SetInternal(err)
	}
	return c.Validate(req)
}

func pageParams(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func parseDate(field, value string, loc *time.Location) (time.Time, error) {
	t, err := reservation.ParseDate(value, loc)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, field+" は YYYY-MM-DD 形式で指定してください")
	}
	return t, nil
}

func formatDates(ds []time.Time) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = reservation.NightKey(d)
	}
	return out
}
