package devserver

import (
	"encoding/base64"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vnfood/foodctl/pkg/apiresponses"
	"github.com/vnfood/foodctl/pkg/system"
)

const maxImageBytes = 10 << 20

// foodController serves the catalog and predictions. Neither requires a
// session; predictions are recorded in history when one is present.
type foodController struct {
	s *Server
}

func (f *foodController) BasePath() string { return "" }

func (f *foodController) Handlers() []gin.HandlerFunc {
	return f.s.limit(f.s.apiLimit, nil)
}

func (f *foodController) Register(rg *gin.RouterGroup) error {
	rg.GET("foods/search", f.handleSearch)
	rg.GET("food/:name", f.handleGet)
	rg.POST("predict", f.s.optionalAuth(), f.handlePredict)
	return nil
}

func language(value string) string {
	if value == "" {
		return languageVN
	}
	return value
}

func (f *foodController) handleSearch(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		apiresponses.RespondBadRequest(c, "page must be an integer")
		return
	}
	perPage, err := intQuery(c, "per_page", DefaultPerPage)
	if err != nil || perPage <= 0 {
		apiresponses.RespondBadRequest(c, "per_page must be a positive integer")
		return
	}
	foods, pages := f.s.catalog.search(c.Query("search"), c.DefaultQuery("region", "all"), language(c.Query("lang")), page, perPage)
	apiresponses.RespondOK(c, gin.H{"foods": foods, "pagination": pages})
}

func (f *foodController) handleGet(c *gin.Context) {
	name := c.Param("name")
	info, ok := f.s.catalog.info(name, language(c.Query("lang")))
	if !ok {
		apiresponses.RespondNotFound(c, "food", name)
		return
	}
	apiresponses.RespondOK(c, gin.H{"food": info})
}

func (f *foodController) handlePredict(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		apiresponses.RespondBadRequest(c, "No image provided")
		return
	}
	file, err := header.Open()
	if err != nil {
		apiresponses.RespondBadRequest(c, "No image provided")
		return
	}
	defer func() {
		_ = file.Close()
	}()
	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil || len(image) == 0 {
		apiresponses.RespondBadRequest(c, "No image provided")
		return
	}

	lang := language(c.PostForm("lang"))
	result := f.s.catalog.classify(image)
	info, _ := f.s.catalog.info(result.Name, lang)

	if username := c.GetString(usernameKey); username != "" {
		f.s.history.add(username, historyItem{
			FoodName:    result.Name,
			Confidence:  result.Confidence,
			ImageBase64: base64.StdEncoding.EncodeToString(image),
		})
		system.GetReqLogger(c, f.s.log).Debugw("Prediction recorded", "food", result.Name)
	}
	f.s.audit.PredictionCreated(c.Request.Context(), actor(c, c.GetString(usernameKey)), requestID(c), result.Name, result.Confidence)

	apiresponses.RespondOK(c, gin.H{
		"food_name":  result.Name,
		"confidence": result.Confidence,
		"food_info":  info,
		"related":    result.Related,
	})
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
