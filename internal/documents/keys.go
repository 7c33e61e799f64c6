package documents

import "path"

// RequestPrefix is where files uploaded against a request are stored.
func RequestPrefix(clientID, requestID string) string {
	return path.Join("clients", clientID, "requests", requestID)
}

// CaseRequestPrefix mirrors RequestPrefix under the linked application.
func CaseRequestPrefix(applicationID, requestID string) string {
	return path.Join("cases", applicationID, "requests", requestID)
}

// CaseDocumentsPrefix holds files uploaded with an application's portal token.
func CaseDocumentsPrefix(applicationID string) string {
	return path.Join("cases", applicationID, "documents")
}

// ObjectKey joins a prefix and a stored filename.
func ObjectKey(prefix, storedFilename string) string {
	return path.Join(prefix, storedFilename)
}
