// Package flow registra unidades de trabalho como flows e steps.
//
// Um flow tem identificadores próprios (trace id, span id, parent span id,
// correlation id) e vira um Record imutável quando termina. Um step não tem
// identificadores: ao terminar ele é convertido em Event e anexado ao flow
// aberto mais próximo. Um step iniciado sem flow aberto é promovido a flow.
//
// A pilha de unidades abertas viaja no context.Context. Goroutines criadas a
// partir de um flow devem receber flow.Fork(ctx) para herdar a pilha sem
// compartilhá-la.
//
// Cada flow finalizado é entregue aos Receivers configurados (normalmente o
// dispatch.Bus). Quando o flow raiz termina, o lote [raiz, descendentes...]
// é entregue em ordem de início.
//
// Exemplo básico:
//
//	engine, err := flow.New(o11y,
//	    flow.WithServiceID("orders"),
//	    flow.WithReceiver(bus),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = engine.WithFlow(ctx, flow.Options{Name: "orders.create"}, func(ctx context.Context) error {
//	    flow.SetAttribute(ctx, "order.id", id)
//	    return engine.WithStep(ctx, flow.Options{Name: "validate"}, func(ctx context.Context) error {
//	        return validate(ctx, id)
//	    })
//	})
//
// Falhas de hooks, builders e receivers são isoladas: são logadas e
// contabilizadas, nunca retornadas ao código da aplicação.
package flow
