// ati-eye - detect and record objects seen by a camera
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/TheCacophonyProject/ati-eye/detection"
)

const jpegQuality = 90

// Remote sends frames to an inference service over HTTP. Each frame is
// posted as a JPEG in the "file" field of a multipart form and the service
// replies with
//
//	{"detections": [{"class": 0, "box": [x1, y1, x2, y2], "score": 0.9}]}
type Remote struct {
	url        string
	confidence float64
	client     *http.Client
}

func NewRemote(detectURL string, confidence float64, timeout time.Duration) *Remote {
	return &Remote{
		url:        detectURL,
		confidence: confidence,
		client:     &http.Client{Timeout: timeout},
	}
}

type remoteDetection struct {
	Class int       `json:"class"`
	Box   []float64 `json:"box"`
	Score float64   `json:"score"`
}

func (r *Remote) Detect(img image.Image) ([]detection.Detection, error) {
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []remoteDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var dets []detection.Detection
	for _, d := range result.Detections {
		if len(d.Box) != 4 {
			return nil, fmt.Errorf("box should have 4 values, got %d", len(d.Box))
		}
		if d.Score < r.confidence {
			continue
		}
		dets = append(dets, detection.Detection{
			Class: d.Class,
			Box:   image.Rect(int(d.Box[0]), int(d.Box[1]), int(d.Box[2]), int(d.Box[3])),
			Score: d.Score,
		})
	}
	return dets, nil
}

// CheckHealth asks the inference service whether it is ready. The service
// answers on /health at the root of the detect URL's host.
func (r *Remote) CheckHealth() error {
	health, err := healthURL(r.url)
	if err != nil {
		return err
	}
	resp, err := r.client.Get(health)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func healthURL(detectURL string) (string, error) {
	base, err := url.Parse(detectURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(&url.URL{Path: "/health"}).String(), nil
}
