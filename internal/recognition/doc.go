// Package recognition identifies the campus building a device camera is
// pointed at and keeps the recognition log and model registry.
//
// Image classification is delegated to an external Recognizer. Without
// one, the service falls back to a geo-ray hit test over known buildings
// using the device position and heading. Image bytes are never stored;
// the log keeps a SHA-256 digest so repeated uploads can be correlated.
package recognition
