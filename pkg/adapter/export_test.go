package adapter

var ToQueryResult = toQueryResult
var MimeTypeOf = mimeTypeOf
