// Package extract turns task sources into plain text.
//
// Three source kinds are supported: inline text, an uploaded file, and a web
// page. Files are sniffed by content rather than extension and read as PDF,
// DOCX, or plain text. Web pages are parsed with goquery after dropping
// navigation and script elements. Every result has markup stripped, phone
// numbers and contact handles masked, and blank lines normalized before it
// reaches the script stage.
package extract
