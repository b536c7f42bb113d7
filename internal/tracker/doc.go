// Package tracker отвечает за наблюдаемость выполнения:
//
//   - Recorder — потокобезопасный доступ к execution record;
//     через него stage runner и движок пишут статусы, append-only
//     логи и ошибки, а читатели получают консистентные снимки
//   - Bus — шина событий жизненного цикла (observer pattern)
//     с явными подписками и unsubscribe
//
// Каждый execution, независимо от исхода, несёт лог и список ошибок,
// достаточные для диагностики запуска без его повторения.
package tracker
