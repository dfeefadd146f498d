// Package route stores the multi-stop route plans produced by the assistant
// and resolves individual segments through a directions provider.
//
// A plan's locations are stop names joined by "--", for example
// "图书馆--食堂--体育馆". Segment i runs from stop i to stop i+1.
package route
