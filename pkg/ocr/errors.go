package ocr

import "errors"

// ErrImageDecode is returned when the input bytes are not a decodable image.
var ErrImageDecode = errors.New("could not decode image")

// ErrEmptyRecognition is returned when tesseract produced no usable text.
var ErrEmptyRecognition = errors.New("no text recognized")
