// Package api exposes the notation pipeline over REST, for front ends that
// keep the grid in a browser.
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/tiffz/darbuka/internal/grid"
	"github.com/tiffz/darbuka/internal/midifile"
	"github.com/tiffz/darbuka/internal/notation"
)

// @title Darbuka Rhythm API
// @version 1.0
// @description Parse percussion notation, convert grids and export MIDI
// @host localhost:8080
// @BasePath /api/v1

// StartServer starts the API server on the given port.
func StartServer(port int) error {
	return NewRouter().Run(fmt.Sprintf(":%d", port))
}

// NewRouter builds the gin engine with all routes, separated from StartServer
// so tests can drive it with httptest.
func NewRouter() *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware())

	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/parse", handleParse)
		v1.POST("/grid", handleGrid)
		v1.POST("/notation", handleNotation)
		v1.POST("/export/midi", handleExportMIDI)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// parseRequest is the common request body: compressed notation plus an
// optional time signature (defaults to 4/4).
type parseRequest struct {
	Notation    string  `json:"notation"`
	Numerator   int     `json:"numerator,omitempty"`
	Denominator int     `json:"denominator,omitempty"`
	BPM         float64 `json:"bpm,omitempty"`
}

func (req *parseRequest) timeSignature() notation.TimeSignature {
	if req.Numerator == 0 && req.Denominator == 0 {
		return notation.CommonTime()
	}
	return notation.TimeSignature{Numerator: req.Numerator, Denominator: req.Denominator}
}

type measureJSON struct {
	Notes []noteJSON `json:"notes"`
	Ghost bool       `json:"ghost"`
	// Source is the measure this one mirrors; equals the measure's own index
	// for literal measures.
	Source int `json:"source"`
}

type noteJSON struct {
	Sound      string `json:"sound"`
	Sixteenths int    `json:"sixteenths"`
	Dotted     bool   `json:"dotted,omitempty"`
	TiedFrom   bool   `json:"tiedFrom,omitempty"`
	TiedTo     bool   `json:"tiedTo,omitempty"`
}

// healthCheck godoc
// @Summary Health check endpoint
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "darbuka",
	})
}

// handleParse godoc
// @Summary Parse notation into expanded measures
// @Tags rhythm
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Router /api/v1/parse [post]
func handleParse(c *gin.Context) {
	req, r, ok := parseBody(c)
	if !ok {
		return
	}
	measures := make([]measureJSON, len(r.Measures))
	for i, m := range r.Measures {
		mi := notation.MeasureIndex(i)
		mj := measureJSON{
			Ghost:  r.IsGhost(mi),
			Source: int(r.SourceOf(mi)),
			Notes:  make([]noteJSON, len(m.Notes)),
		}
		for j, n := range m.Notes {
			mj.Notes[j] = noteJSON{
				Sound:      n.Sound.String(),
				Sixteenths: n.Sixteenths,
				Dotted:     n.Dotted,
				TiedFrom:   n.TiedFrom,
				TiedTo:     n.TiedTo,
			}
		}
		measures[i] = mj
	}
	c.JSON(http.StatusOK, gin.H{
		"notation":   req.Notation,
		"measures":   measures,
		"totalTicks": int(r.TotalTicks()),
		"padding":    r.Padding,
		"warnings":   r.Warnings,
	})
}

// handleGrid godoc
// @Summary Convert notation to a tick-indexed grid
// @Tags rhythm
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Router /api/v1/grid [post]
func handleGrid(c *gin.Context) {
	_, r, ok := parseBody(c)
	if !ok {
		return
	}
	g := grid.FromRhythm(&r)
	cells := make([]gin.H, len(g.Cells))
	for i, cell := range g.Cells {
		cells[i] = gin.H{"sound": cell.Sound.String(), "onset": cell.Onset}
	}
	c.JSON(http.StatusOK, gin.H{
		"cells":        cells,
		"actualLength": int(g.ActualLength),
	})
}

// gridRequest carries an edited grid back for serialization.
type gridRequest struct {
	// Cells uses one token per tick: a sound letter for an onset, "-" for
	// sustain, "_" for silence. The original notation supplies the repeat
	// markers to preserve.
	Cells       []string `json:"cells"`
	Notation    string   `json:"notation"`
	Numerator   int      `json:"numerator,omitempty"`
	Denominator int      `json:"denominator,omitempty"`
}

// handleNotation godoc
// @Summary Serialize an edited grid back to notation
// @Tags rhythm
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/notation [post]
func handleNotation(c *gin.Context) {
	var req gridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ts := notation.CommonTime()
	if req.Numerator != 0 || req.Denominator != 0 {
		ts = notation.TimeSignature{Numerator: req.Numerator, Denominator: req.Denominator}
	}
	var repeats []notation.RepeatMarker
	if req.Notation != "" {
		r := notation.ParseRhythm(req.Notation, ts)
		if !r.Valid {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": r.Err})
			return
		}
		repeats = r.Repeats
	}
	g := grid.Grid{Cells: make([]grid.Cell, len(req.Cells)), ActualLength: notation.Tick(len(req.Cells))}
	for i, tok := range req.Cells {
		switch tok {
		case "-", "_", "":
			// sustain or silence: not an onset
		default:
			sound, ok := notation.SoundForToken(tok[0])
			if !ok {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("cell %d: unknown token %q", i, tok)})
				return
			}
			g.Cells[i] = grid.Cell{Sound: sound, Onset: true}
		}
	}
	c.JSON(http.StatusOK, gin.H{"notation": grid.ToNotation(g, repeats, ts)})
}

// handleExportMIDI godoc
// @Summary Export notation as a standard MIDI file
// @Tags export
// @Accept json
// @Produce application/octet-stream
// @Success 200 {file} binary
// @Failure 422 {object} map[string]string
// @Router /api/v1/export/midi [post]
func handleExportMIDI(c *gin.Context) {
	req, r, ok := parseBody(c)
	if !ok {
		return
	}
	opts := midifile.DefaultOptions()
	if req.BPM > 0 {
		opts.BPM = req.BPM
	}
	data, err := midifile.Encode(&r, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="rhythm.mid"`)
	c.Data(http.StatusOK, "audio/midi", data)
}

// parseBody decodes the common request and parses its notation; on failure it
// writes the error response and returns ok=false. Invalid notation is the
// caller's mistake, not the server's, so it maps to 422.
func parseBody(c *gin.Context) (parseRequest, notation.Rhythm, bool) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, notation.Rhythm{}, false
	}
	r := notation.ParseRhythm(req.Notation, req.timeSignature())
	if !r.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": r.Err})
		return req, r, false
	}
	return req, r, true
}
